package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// keySep replaces "/" in blob keys, which ConfigMap data keys cannot hold.
const keySep = "__"

// ConfigMapStore keeps every blob as one data key of a single ConfigMap.
// ConfigMaps are capped at 1 MiB, so this suits small ledgers only.
type ConfigMapStore struct {
	Client    kubernetes.Interface
	Namespace string
	Name      string
}

func NewConfigMapStore(client kubernetes.Interface, namespace, name string) *ConfigMapStore {
	return &ConfigMapStore{Client: client, Namespace: namespace, Name: name}
}

// NewKubeClient builds a clientset from the in-cluster config, falling
// back to the default kubeconfig loading rules.
func NewKubeClient() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
	}
	return kubernetes.NewForConfig(cfg)
}

func encodeKey(key string) string { return strings.ReplaceAll(key, "/", keySep) }
func decodeKey(key string) string { return strings.ReplaceAll(key, keySep, "/") }

func (s *ConfigMapStore) get(ctx context.Context) (*corev1.ConfigMap, error) {
	cm, err := s.Client.CoreV1().ConfigMaps(s.Namespace).Get(ctx, s.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configmap %s/%s: %w", s.Namespace, s.Name, err)
	}
	return cm, nil
}

func (s *ConfigMapStore) Put(ctx context.Context, key string, data []byte) error {
	cm, err := s.get(ctx)
	if err != nil {
		return err
	}
	if cm == nil {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      s.Name,
				Namespace: s.Namespace,
				Labels:    map[string]string{"app.kubernetes.io/managed-by": "gridspawn"},
			},
			Data: map[string]string{encodeKey(key): string(data)},
		}
		if _, err := s.Client.CoreV1().ConfigMaps(s.Namespace).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("failed to create configmap %s/%s: %w", s.Namespace, s.Name, err)
		}
		return nil
	}

	if cm.Data == nil {
		cm.Data = make(map[string]string)
	}
	cm.Data[encodeKey(key)] = string(data)
	if _, err := s.Client.CoreV1().ConfigMaps(s.Namespace).Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update configmap %s/%s: %w", s.Namespace, s.Name, err)
	}
	return nil
}

func (s *ConfigMapStore) Get(ctx context.Context, key string) ([]byte, error) {
	cm, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	if cm != nil {
		if v, ok := cm.Data[encodeKey(key)]; ok {
			return []byte(v), nil
		}
	}
	return nil, fmt.Errorf("configmap %s/%s key %s: %w", s.Namespace, s.Name, key, ErrNotFound)
}

func (s *ConfigMapStore) Delete(ctx context.Context, key string) error {
	cm, err := s.get(ctx)
	if err != nil {
		return err
	}
	k := encodeKey(key)
	if cm == nil {
		return fmt.Errorf("configmap %s/%s key %s: %w", s.Namespace, s.Name, key, ErrNotFound)
	}
	if _, ok := cm.Data[k]; !ok {
		return fmt.Errorf("configmap %s/%s key %s: %w", s.Namespace, s.Name, key, ErrNotFound)
	}
	delete(cm.Data, k)
	if _, err := s.Client.CoreV1().ConfigMaps(s.Namespace).Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update configmap %s/%s: %w", s.Namespace, s.Name, err)
	}
	return nil
}

func (s *ConfigMapStore) List(ctx context.Context, prefix string) ([]string, error) {
	cm, err := s.get(ctx)
	if err != nil || cm == nil {
		return nil, err
	}
	var keys []string
	for k := range cm.Data {
		if key := decodeKey(k); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
