package clients

import (
	"github.com/pkg/errors"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientSets is a collection of clientSets and kubeConfig needed
type ClientSets struct {
	KubeClient    kubernetes.Interface
	DynamicClient dynamic.Interface
	KubeConfig    *rest.Config
	Retry         RetryPolicy
}

// GenerateClientSetFromKubeConfig will generate both ClientSets (k8s and dynamic) as well as the KubeConfig
// It uses in-cluster config, if kubeconfig path is not specified
func (clientSets *ClientSets) GenerateClientSetFromKubeConfig(kubeconfig string) error {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return errors.Wrapf(err, "unable to load the kubeconfig %q", kubeconfig)
	}
	k8sClientSet, err := kubernetes.NewForConfig(config)
	if err != nil {
		return errors.Wrapf(err, "unable to generate kubernetes clientSet")
	}
	dynamicClientSet, err := dynamic.NewForConfig(config)
	if err != nil {
		return errors.Wrapf(err, "unable to generate dynamic clientSet")
	}
	clientSets.KubeClient = k8sClientSet
	clientSets.DynamicClient = dynamicClientSet
	clientSets.KubeConfig = config
	return nil
}
