package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
)

const (
	EventingStepName         = "eventing"
	CommerceEventingStepName = "commerce"
	ExternalEventingStepName = "external"

	providerTypeCommerce = "commerce"
	providerTypeExternal = "external"

	commerceEventCodePrefix = "commerce."
)

// ProviderResult records what was created for one configured provider.
type ProviderResult struct {
	Provider      Provider       `json:"provider"`
	EventCodes    []string       `json:"eventCodes"`
	Registrations []Registration `json:"registrations"`
}

// EventingResult is the output of the commerce and external eventing leaves.
type EventingResult struct {
	Providers []ProviderResult `json:"providers"`
}

// EventingStep creates event providers, their event metadata and the
// registrations routing events to runtime actions.
var EventingStep = api.MustDefineBranchStep(api.BranchStepOptions{
	Name: EventingStepName,
	Meta: api.StepMeta{
		Label:       "Eventing",
		Description: "Creates event providers, event metadata and registrations",
	},
	When:    func(cfg *config.AppConfig) bool { return cfg.HasEventing() },
	Context: eventingContext,
	Children: []api.Step{
		api.DefineLeafStep(api.LeafStepOptions{
			Name: CommerceEventingStepName,
			Meta: api.StepMeta{
				Label:       "Commerce events",
				Description: "Configures commerce eventing and subscribes to commerce events",
			},
			When: func(cfg *config.AppConfig) bool { return cfg.HasCommerceEventing() },
			Run:  runCommerceEventing,
		}),
		api.DefineLeafStep(api.LeafStepOptions{
			Name: ExternalEventingStepName,
			Meta: api.StepMeta{
				Label:       "External events",
				Description: "Creates providers for events published by external systems",
			},
			When: func(cfg *config.AppConfig) bool { return cfg.HasExternalEventing() },
			Run:  runExternalEventing,
		}),
	},
})

func eventingContext(_ *config.AppConfig, ec api.ExecutionContext) ([]api.ContextBinding, error) {
	factory, err := ClientFactoryKey.MustGet(ec)
	if err != nil {
		return nil, err
	}
	events, err := factory.EventsClient(ec)
	if err != nil {
		return nil, fmt.Errorf("create events client: %w", err)
	}
	commerce, err := factory.CommerceClient(ec)
	if err != nil {
		return nil, fmt.Errorf("create commerce client: %w", err)
	}
	return []api.ContextBinding{
		EventsClientKey.Bind(events),
		CommerceClientKey.Bind(commerce),
	}, nil
}

func runCommerceEventing(ctx context.Context, cfg *config.AppConfig, ec api.ExecutionContext) (any, error) {
	commerce, err := CommerceClientKey.MustGet(ec)
	if err != nil {
		return nil, err
	}
	return installProviders(ctx, cfg, ec, cfg.Eventing.Commerce, providerTypeCommerce,
		func(ctx context.Context, p Provider, cp config.Provider) error {
			if err := commerce.ConfigureEventing(ctx, p.ID, p.InstanceID); err != nil {
				return fmt.Errorf("configure commerce eventing for %q: %w", cp.Label, err)
			}
			for _, ev := range cp.Events {
				err := commerce.SubscribeEvent(ctx, EventSubscription{
					ProviderID: p.ID,
					Name:       ev.Name,
					Fields:     ev.Fields,
				})
				if err != nil {
					return fmt.Errorf("subscribe commerce event %q: %w", ev.Name, err)
				}
			}
			return nil
		})
}

func runExternalEventing(ctx context.Context, cfg *config.AppConfig, ec api.ExecutionContext) (any, error) {
	return installProviders(ctx, cfg, ec, cfg.Eventing.External, providerTypeExternal, nil)
}

func installProviders(
	ctx context.Context,
	cfg *config.AppConfig,
	ec api.ExecutionContext,
	providers []config.Provider,
	providerType string,
	afterCreate func(context.Context, Provider, config.Provider) error,
) (*EventingResult, error) {
	events, err := EventsClientKey.MustGet(ec)
	if err != nil {
		return nil, err
	}

	result := &EventingResult{Providers: make([]ProviderResult, 0, len(providers))}
	for i, cp := range providers {
		provider, err := events.CreateProvider(ctx, ProviderSpec{
			Label:       cp.Label,
			Description: cp.Description,
			InstanceID:  providerInstanceID(cfg, cp, providerType, i),
			Type:        providerType,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", providerType, cp.Label, err)
		}
		ec.Log().DebugContext(ctx, "event provider created", "provider_id", provider.ID, "label", cp.Label)

		if afterCreate != nil {
			if err := afterCreate(ctx, provider, cp); err != nil {
				return nil, err
			}
		}

		pr := ProviderResult{Provider: provider, EventCodes: make([]string, 0, len(cp.Events))}
		byAction := make(map[string][]string)
		var actions []string
		for _, ev := range cp.Events {
			code := eventCode(ev.Name, providerType)
			err := events.CreateEventMetadata(ctx, EventMetadataSpec{
				ProviderID:  provider.ID,
				EventCode:   code,
				Label:       firstNonEmpty(ev.Label, ev.Name),
				Description: ev.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("create event metadata %q: %w", code, err)
			}
			pr.EventCodes = append(pr.EventCodes, code)

			if _, seen := byAction[ev.RuntimeAction]; !seen {
				actions = append(actions, ev.RuntimeAction)
			}
			byAction[ev.RuntimeAction] = append(byAction[ev.RuntimeAction], code)
		}

		for _, action := range actions {
			reg, err := events.CreateRegistration(ctx, RegistrationSpec{
				Name:          fmt.Sprintf("%s - %s", cfg.Metadata.DisplayName, action),
				ProviderID:    provider.ID,
				EventCodes:    byAction[action],
				RuntimeAction: action,
			})
			if err != nil {
				return nil, fmt.Errorf("create registration for %q: %w", action, err)
			}
			pr.Registrations = append(pr.Registrations, reg)
		}

		result.Providers = append(result.Providers, pr)
	}
	return result, nil
}

func providerInstanceID(cfg *config.AppConfig, p config.Provider, providerType string, idx int) string {
	if p.Key != "" {
		return fmt.Sprintf("%s-%s", cfg.Metadata.ID, p.Key)
	}
	return fmt.Sprintf("%s-%s-%d", cfg.Metadata.ID, providerType, idx)
}

func eventCode(name, providerType string) string {
	if providerType == providerTypeCommerce && !strings.HasPrefix(name, commerceEventCodePrefix) {
		return commerceEventCodePrefix + name
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
