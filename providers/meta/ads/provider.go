package ads

import (
	"context"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

const (
	ScopeAdsManagement      = "ads_management"
	ScopeAdsRead            = "ads_read"
	ScopeBusinessManagement = "business_management"
	ScopePagesShowList      = "pages_show_list"
)

type Config = meta.AuthConfig

// Adapter covers the meta_ads connection: authorization, profile and token
// verification. Publishing goes through the facebook and instagram adapters.
type Adapter struct {
	*meta.Adapter
}

func DefaultScopes() []string {
	return []string{
		ScopeAdsManagement,
		ScopeAdsRead,
		ScopeBusinessManagement,
		ScopePagesShowList,
	}
}

func New(cfg Config) (*Adapter, error) {
	base, err := meta.NewAdapter(providers.Metadata{Platform: core.PlatformMetaAds}, cfg, DefaultScopes())
	if err != nil {
		return nil, err
	}
	return &Adapter{Adapter: base}, nil
}

func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	me, err := a.Me(ctx, credentials.AccessToken)
	if err != nil {
		return providers.Profile{}, err
	}
	return providers.Profile{ID: me.ID, Username: me.Name, Name: me.Name}, nil
}

func (a *Adapter) PostContent(context.Context, core.PlatformCredentials, providers.PostRequest) (providers.Result, error) {
	err := providers.Unsupported(core.PlatformMetaAds, "post content")
	return providers.Failed(err), err
}

func (a *Adapter) UploadMedia(context.Context, core.PlatformCredentials, providers.MediaUpload) (providers.Result, error) {
	err := providers.Unsupported(core.PlatformMetaAds, "upload media")
	return providers.Failed(err), err
}

func (a *Adapter) SchedulePost(context.Context, core.PlatformCredentials, providers.PostRequest, time.Time) (providers.Result, error) {
	err := providers.Unsupported(core.PlatformMetaAds, "schedule post")
	return providers.Failed(err), err
}

func (a *Adapter) PostMetrics(context.Context, core.PlatformCredentials, string) (providers.PostMetrics, error) {
	return providers.PostMetrics{}, providers.Unsupported(core.PlatformMetaAds, "post metrics")
}

var _ providers.PlatformAdapter = (*Adapter)(nil)
