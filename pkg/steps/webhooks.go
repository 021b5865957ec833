package steps

import (
	"context"
	"fmt"

	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
)

const (
	WebhooksStepName              = "webhooks"
	WebhookSubscriptionsStepName  = "subscriptions"
	runtimeActionURLParam         = "runtimeActionBaseUrl"
	defaultRuntimeActionURLFormat = "https://%s.runtime.invalid/api/v1/web/%s"
)

// WebhookResult records one subscribed webhook.
type WebhookResult struct {
	Method string `json:"method"`
	Hook   string `json:"hook"`
	URL    string `json:"url"`
}

// WebhooksStep subscribes the configured commerce webhooks.
var WebhooksStep = api.MustDefineBranchStep(api.BranchStepOptions{
	Name: WebhooksStepName,
	Meta: api.StepMeta{
		Label:       "Webhooks",
		Description: "Subscribes commerce webhooks to runtime actions",
	},
	When:    func(cfg *config.AppConfig) bool { return cfg.HasWebhooks() },
	Context: webhooksContext,
	Children: []api.Step{
		api.DefineLeafStep(api.LeafStepOptions{
			Name: WebhookSubscriptionsStepName,
			Meta: api.StepMeta{Label: "Webhook subscriptions"},
			Run:  runWebhookSubscriptions,
		}),
	},
})

func webhooksContext(_ *config.AppConfig, ec api.ExecutionContext) ([]api.ContextBinding, error) {
	factory, err := ClientFactoryKey.MustGet(ec)
	if err != nil {
		return nil, err
	}
	commerce, err := factory.CommerceClient(ec)
	if err != nil {
		return nil, fmt.Errorf("create commerce client: %w", err)
	}
	return []api.ContextBinding{CommerceClientKey.Bind(commerce)}, nil
}

func runWebhookSubscriptions(ctx context.Context, cfg *config.AppConfig, ec api.ExecutionContext) (any, error) {
	commerce, err := CommerceClientKey.MustGet(ec)
	if err != nil {
		return nil, err
	}

	results := make([]WebhookResult, 0, len(cfg.Webhooks))
	for _, wh := range cfg.Webhooks {
		url := runtimeActionURL(ec, wh.RuntimeAction)
		err := commerce.SubscribeWebhook(ctx, WebhookSubscription{
			Method:    wh.Method,
			Type:      wh.Type,
			BatchName: wh.BatchName,
			HookName:  wh.HookName,
			URL:       url,
		})
		if err != nil {
			return nil, fmt.Errorf("subscribe webhook %q: %w", wh.Label, err)
		}
		results = append(results, WebhookResult{Method: wh.Method, Hook: wh.HookName, URL: url})
	}
	return results, nil
}

// runtimeActionURL resolves the public URL of a runtime action, preferring a
// base URL passed in the action parameters.
func runtimeActionURL(ec api.ExecutionContext, action string) string {
	if base, ok := ec.Params[runtimeActionURLParam].(string); ok && base != "" {
		return base + "/" + action
	}
	return fmt.Sprintf(defaultRuntimeActionURLFormat, ec.App.WorkspaceID, action)
}
