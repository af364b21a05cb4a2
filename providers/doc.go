// Package providers defines the PlatformAdapter contract shared by every social
// network integration, plus the OAuth2 client, HTTP API helper and error
// classifier the per-network packages are built from.
package providers
