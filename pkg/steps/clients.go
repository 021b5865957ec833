package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/petrijr/appinstall/pkg/api"
)

// ProviderSpec describes an event provider to create.
type ProviderSpec struct {
	Label       string
	Description string
	// InstanceID distinguishes providers of the same type within a workspace.
	InstanceID string
	// Type is "commerce" or "external".
	Type string
}

// Provider is a created event provider.
type Provider struct {
	ID         string `json:"id"`
	InstanceID string `json:"instanceId"`
	Label      string `json:"label"`
}

// EventMetadataSpec registers an event code on a provider.
type EventMetadataSpec struct {
	ProviderID  string
	EventCode   string
	Label       string
	Description string
}

// RegistrationSpec routes events of a provider to a runtime action.
type RegistrationSpec struct {
	Name          string
	ProviderID    string
	EventCodes    []string
	RuntimeAction string
}

// Registration is a created event registration.
type Registration struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventsClient is the subset of the eventing API used during installation.
type EventsClient interface {
	CreateProvider(ctx context.Context, spec ProviderSpec) (Provider, error)
	CreateEventMetadata(ctx context.Context, spec EventMetadataSpec) error
	CreateRegistration(ctx context.Context, spec RegistrationSpec) (Registration, error)
}

// EventSubscription subscribes commerce to emit an event.
type EventSubscription struct {
	ProviderID string
	Name       string
	Fields     []string
}

// WebhookSubscription registers a commerce webhook.
type WebhookSubscription struct {
	Method    string
	Type      string
	BatchName string
	HookName  string
	URL       string
}

// CommerceClient is the subset of the commerce API used during installation.
type CommerceClient interface {
	ConfigureEventing(ctx context.Context, providerID string, instanceID string) error
	SubscribeEvent(ctx context.Context, sub EventSubscription) error
	SubscribeWebhook(ctx context.Context, sub WebhookSubscription) error
}

// ClientFactory builds API clients from the execution context, typically
// from the credentials in ec.Params.
type ClientFactory interface {
	EventsClient(ec api.ExecutionContext) (EventsClient, error)
	CommerceClient(ec api.ExecutionContext) (CommerceClient, error)
}

// Context keys contributed by the built-in branches.
var (
	ClientFactoryKey  = api.NewContextKey[ClientFactory]("clientFactory")
	EventsClientKey   = api.NewContextKey[EventsClient]("eventsClient")
	CommerceClientKey = api.NewContextKey[CommerceClient]("commerceClient")
	ScriptRegistryKey = api.NewContextKey[*ScriptRegistry]("scriptRegistry")
)

// DryRunClientFactory returns clients that log every call and return
// synthetic identifiers instead of talking to a backend.
type DryRunClientFactory struct {
	Logger *slog.Logger

	seq atomic.Int64
}

var _ ClientFactory = (*DryRunClientFactory)(nil)

// NewDryRunClientFactory creates a DryRunClientFactory. A nil logger uses
// slog.Default().
func NewDryRunClientFactory(logger *slog.Logger) *DryRunClientFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunClientFactory{Logger: logger}
}

func (f *DryRunClientFactory) EventsClient(api.ExecutionContext) (EventsClient, error) {
	return dryRunEvents{f}, nil
}

func (f *DryRunClientFactory) CommerceClient(api.ExecutionContext) (CommerceClient, error) {
	return dryRunCommerce{f}, nil
}

func (f *DryRunClientFactory) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, f.seq.Add(1))
}

type dryRunEvents struct{ f *DryRunClientFactory }

func (d dryRunEvents) CreateProvider(ctx context.Context, spec ProviderSpec) (Provider, error) {
	id := d.f.nextID("provider")
	d.f.Logger.InfoContext(ctx, "dry_run_create_provider",
		slog.String("label", spec.Label),
		slog.String("type", spec.Type),
		slog.String("id", id),
	)
	return Provider{ID: id, InstanceID: spec.InstanceID, Label: spec.Label}, nil
}

func (d dryRunEvents) CreateEventMetadata(ctx context.Context, spec EventMetadataSpec) error {
	d.f.Logger.InfoContext(ctx, "dry_run_create_event_metadata",
		slog.String("provider_id", spec.ProviderID),
		slog.String("event_code", spec.EventCode),
	)
	return nil
}

func (d dryRunEvents) CreateRegistration(ctx context.Context, spec RegistrationSpec) (Registration, error) {
	id := d.f.nextID("registration")
	d.f.Logger.InfoContext(ctx, "dry_run_create_registration",
		slog.String("name", spec.Name),
		slog.String("runtime_action", spec.RuntimeAction),
		slog.Int("events", len(spec.EventCodes)),
	)
	return Registration{ID: id, Name: spec.Name}, nil
}

type dryRunCommerce struct{ f *DryRunClientFactory }

func (d dryRunCommerce) ConfigureEventing(ctx context.Context, providerID, instanceID string) error {
	d.f.Logger.InfoContext(ctx, "dry_run_configure_eventing",
		slog.String("provider_id", providerID),
		slog.String("instance_id", instanceID),
	)
	return nil
}

func (d dryRunCommerce) SubscribeEvent(ctx context.Context, sub EventSubscription) error {
	d.f.Logger.InfoContext(ctx, "dry_run_subscribe_event",
		slog.String("provider_id", sub.ProviderID),
		slog.String("event", sub.Name),
	)
	return nil
}

func (d dryRunCommerce) SubscribeWebhook(ctx context.Context, sub WebhookSubscription) error {
	d.f.Logger.InfoContext(ctx, "dry_run_subscribe_webhook",
		slog.String("method", sub.Method),
		slog.String("hook", sub.HookName),
	)
	return nil
}
