package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	apiv1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Event reasons emitted against the chaos resource of a run
const (
	ChaosInject = "ChaosInject"
	Summary     = "Summary"
)

const component = "chaos-advisor"

// EventDetails is for collecting all the events-related details
type EventDetails struct {
	Message      string
	Reason       string
	Type         string
	ResourceName string
	Namespace    string
	Kind         string
	APIVersion   string
}

// ForManifest builds the event details of a run, the event is attached to its chaos resource
func ForManifest(manifest *types.ChaosManifest, reason, message string) *EventDetails {
	return &EventDetails{
		Message:      message,
		Reason:       reason,
		Type:         apiv1.EventTypeNormal,
		ResourceName: manifest.Name,
		Namespace:    manifest.Namespace,
		Kind:         manifest.Object.GetKind(),
		APIVersion:   manifest.Object.GetAPIVersion(),
	}
}

func (d *EventDetails) name() string {
	return fmt.Sprintf("%s.%s", d.ResourceName, strings.ToLower(d.Reason))
}

// CreateEvents create the events
func CreateEvents(ctx context.Context, eventsDetails *EventDetails, client kubernetes.Interface) error {
	now := metav1.Time{Time: time.Now()}
	events := &apiv1.Event{
		ObjectMeta: metav1.ObjectMeta{
			Name:      eventsDetails.name(),
			Namespace: eventsDetails.Namespace,
		},
		Source: apiv1.EventSource{
			Component: component,
		},
		Message:        eventsDetails.Message,
		Reason:         eventsDetails.Reason,
		Type:           eventsDetails.Type,
		Count:          1,
		FirstTimestamp: now,
		LastTimestamp:  now,
		InvolvedObject: apiv1.ObjectReference{
			APIVersion: eventsDetails.APIVersion,
			Kind:       eventsDetails.Kind,
			Name:       eventsDetails.ResourceName,
			Namespace:  eventsDetails.Namespace,
		},
	}

	_, err := client.CoreV1().Events(eventsDetails.Namespace).Create(ctx, events, metav1.CreateOptions{})
	return err
}

// GenerateEvents creates the event, or bumps the count of an existing one
func GenerateEvents(ctx context.Context, eventsDetails *EventDetails, client kubernetes.Interface) error {
	event, err := client.CoreV1().Events(eventsDetails.Namespace).Get(ctx, eventsDetails.name(), metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return CreateEvents(ctx, eventsDetails, client)
		}
		return err
	}

	event.Count++
	event.Message = eventsDetails.Message
	event.LastTimestamp = metav1.Time{Time: time.Now()}
	_, err = client.CoreV1().Events(eventsDetails.Namespace).Update(ctx, event, metav1.UpdateOptions{})
	return err
}
