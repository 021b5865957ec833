// Package steps contains the built-in installation steps: event providers
// and registrations, webhook subscriptions, and custom installation scripts.
//
// The steps talk to the platform APIs through the EventsClient and
// CommerceClient capabilities. A ClientFactory bound under ClientFactoryKey in
// the base execution context builds them; the eventing and webhooks branches
// bind the clients for their descendants.
package steps

import "github.com/petrijr/appinstall/pkg/api"

// BuiltinSteps returns the built-in top-level steps in execution order.
func BuiltinSteps() []api.Step {
	return []api.Step{EventingStep, WebhooksStep, CustomInstallationStep}
}
