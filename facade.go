package social

import (
	"fmt"

	socialcommand "github.com/goliatone/go-social/command"
	socialquery "github.com/goliatone/go-social/query"
)

type CommandQueryService interface {
	socialcommand.MutatingService
	socialquery.MetaCapabilityReader
	socialquery.AccountReader
}

type Commands struct {
	PublishPost       *socialcommand.PublishPostCommand
	ConnectAccount    *socialcommand.ConnectAccountCommand
	RefreshAccount    *socialcommand.RefreshAccountCommand
	DisconnectAccount *socialcommand.DisconnectAccountCommand
}

type Queries struct {
	ResolveMetaCapability *socialquery.ResolveMetaCapabilityQuery
	ListAccounts          *socialquery.ListAccountsQuery
	ListPublishAttempts   *socialquery.ListPublishAttemptsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	attemptReader socialquery.PublishAttemptReader
}

// WithPublishAttemptReader overrides the reader behind ListPublishAttempts.
func WithPublishAttemptReader(reader socialquery.PublishAttemptReader) FacadeOption {
	return func(options *facadeOptions) {
		options.attemptReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("social: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.attemptReader
	if reader == nil {
		if candidate, ok := service.(socialquery.PublishAttemptReader); ok {
			reader = candidate
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		PublishPost:       socialcommand.NewPublishPostCommand(service),
		ConnectAccount:    socialcommand.NewConnectAccountCommand(service),
		RefreshAccount:    socialcommand.NewRefreshAccountCommand(service),
		DisconnectAccount: socialcommand.NewDisconnectAccountCommand(service),
	}
	facade.queries = Queries{
		ResolveMetaCapability: socialquery.NewResolveMetaCapabilityQuery(service),
		ListAccounts:          socialquery.NewListAccountsQuery(service),
		ListPublishAttempts:   socialquery.NewListPublishAttemptsQuery(reader),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
