// Package core holds the social publishing domain: platforms, credentials,
// publish targets and results, stored account records, configuration and the
// error envelope. Adapters, storage and orchestration depend on this package;
// core does not depend on any of them.
package core
