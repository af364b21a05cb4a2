package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[PublishPostMessage]       = (*PublishPostCommand)(nil)
	_ gocmd.Commander[ConnectAccountMessage]    = (*ConnectAccountCommand)(nil)
	_ gocmd.Commander[RefreshAccountMessage]    = (*RefreshAccountCommand)(nil)
	_ gocmd.Commander[DisconnectAccountMessage] = (*DisconnectAccountCommand)(nil)
)
