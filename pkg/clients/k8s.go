package clients

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/litmuschaos/chaos-advisor/pkg/utils/retry"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
)

// RetryPolicy bounds the retries of transient API failures
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

func (clients *ClientSets) retry() *retry.Model {
	attempts, delay := clients.Retry.Attempts, clients.Retry.Delay
	if attempts == 0 {
		attempts, delay = defaultAttempts, defaultDelay
	}
	return retry.Times(attempts).Wait(delay).If(IsTransient)
}

// IsTransient reports whether an API error is worth retrying
func IsTransient(err error) bool {
	return k8serrors.IsServerTimeout(err) || k8serrors.IsTimeout(err) ||
		k8serrors.IsTooManyRequests(err) || k8serrors.IsInternalError(err) ||
		k8serrors.IsServiceUnavailable(err) || k8serrors.IsUnexpectedServerError(err)
}

// EnsureNamespace creates the namespace when it is absent
func (clients *ClientSets) EnsureNamespace(ctx context.Context, name string) error {
	return clients.retry().Try(func(attempt uint) error {
		_, err := clients.KubeClient.CoreV1().Namespaces().Get(ctx, name, v1.GetOptions{})
		if err == nil || !k8serrors.IsNotFound(err) {
			return err
		}
		ns := &corev1.Namespace{ObjectMeta: v1.ObjectMeta{Name: name}}
		if _, err = clients.KubeClient.CoreV1().Namespaces().Create(ctx, ns, v1.CreateOptions{}); k8serrors.IsAlreadyExists(err) {
			return nil
		}
		return err
	})
}

// CreateChaosResource creates a namespaced chaos resource
func (clients *ClientSets) CreateChaosResource(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	var (
		created *unstructured.Unstructured
		err     error
	)
	resource := clients.DynamicClient.Resource(gvr).Namespace(obj.GetNamespace())
	if err := clients.retry().Try(func(attempt uint) error {
		created, err = resource.Create(ctx, obj, v1.CreateOptions{})
		if attempt > 0 && k8serrors.IsAlreadyExists(err) {
			// an earlier attempt reached the server before it timed out
			existing, getErr := resource.Get(ctx, obj.GetName(), v1.GetOptions{})
			if getErr == nil && sameOwner(obj, existing) {
				created, err = existing, nil
			}
		}
		return err
	}); err != nil {
		return nil, err
	}
	return created, nil
}

// sameOwner reports whether existing carries every label of the wanted object
func sameOwner(want, existing *unstructured.Unstructured) bool {
	labels := want.GetLabels()
	if len(labels) == 0 {
		return false
	}
	got := existing.GetLabels()
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

// GetChaosResource fetches a namespaced chaos resource
func (clients *ClientSets) GetChaosResource(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
	var (
		obj *unstructured.Unstructured
		err error
	)
	if err := clients.retry().Try(func(attempt uint) error {
		obj, err = clients.DynamicClient.Resource(gvr).Namespace(namespace).Get(ctx, name, v1.GetOptions{})
		return err
	}); err != nil {
		return nil, err
	}
	return obj, nil
}

// DeleteChaosResource deletes a namespaced chaos resource, an absent resource is not an error
func (clients *ClientSets) DeleteChaosResource(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error {
	return clients.retry().Try(func(attempt uint) error {
		err := clients.DynamicClient.Resource(gvr).Namespace(namespace).Delete(ctx, name, v1.DeleteOptions{})
		if k8serrors.IsNotFound(err) {
			return nil
		}
		return err
	})
}
