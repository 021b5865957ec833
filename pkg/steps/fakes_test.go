package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/petrijr/appinstall/pkg/api"
)

// fakeClients records every API call made by the built-in steps.
type fakeClients struct {
	mu sync.Mutex

	providers     []ProviderSpec
	metadata      []EventMetadataSpec
	registrations []RegistrationSpec
	configured    []string
	events        []EventSubscription
	webhooks      []WebhookSubscription

	failProvider string
	factoryErr   error
}

func (f *fakeClients) EventsClient(api.ExecutionContext) (EventsClient, error) {
	if f.factoryErr != nil {
		return nil, f.factoryErr
	}
	return f, nil
}

func (f *fakeClients) CommerceClient(api.ExecutionContext) (CommerceClient, error) {
	if f.factoryErr != nil {
		return nil, f.factoryErr
	}
	return f, nil
}

func (f *fakeClients) CreateProvider(_ context.Context, spec ProviderSpec) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if spec.Label == f.failProvider {
		return Provider{}, fmt.Errorf("provider quota exceeded")
	}
	f.providers = append(f.providers, spec)
	return Provider{
		ID:         fmt.Sprintf("p%d", len(f.providers)),
		InstanceID: spec.InstanceID,
		Label:      spec.Label,
	}, nil
}

func (f *fakeClients) CreateEventMetadata(_ context.Context, spec EventMetadataSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata = append(f.metadata, spec)
	return nil
}

func (f *fakeClients) CreateRegistration(_ context.Context, spec RegistrationSpec) (Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations = append(f.registrations, spec)
	return Registration{ID: fmt.Sprintf("r%d", len(f.registrations)), Name: spec.Name}, nil
}

func (f *fakeClients) ConfigureEventing(_ context.Context, providerID, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = append(f.configured, providerID+"/"+instanceID)
	return nil
}

func (f *fakeClients) SubscribeEvent(_ context.Context, sub EventSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sub)
	return nil
}

func (f *fakeClients) SubscribeWebhook(_ context.Context, sub WebhookSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, sub)
	return nil
}
