package handover

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

// KubernetesRuntime manages pods as workloads. Use the kubernetes.Interface
// here so unit tests can inject the fake clientset.
type KubernetesRuntime struct {
	log       *zap.SugaredLogger
	client    kubernetes.Interface
	namespace string
}

func NewKubernetesRuntime(log *zap.SugaredLogger, client kubernetes.Interface, namespace string) *KubernetesRuntime {
	return &KubernetesRuntime{
		log:       log.Named("k8s-runtime"),
		client:    client,
		namespace: namespace,
	}
}

func (r *KubernetesRuntime) List(ctx context.Context, env string) ([]Workload, error) {
	pods, err := r.client.CoreV1().Pods(r.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: LabelEnv + "=" + env,
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", r.namespace, err)
	}

	workloads := make([]Workload, 0, len(pods.Items))
	for _, pod := range pods.Items {
		labels := make(map[string]string, len(pod.Labels))
		for k, v := range pod.Labels {
			labels[k] = v
		}
		workloads = append(workloads, Workload{ID: pod.Name, Labels: labels})
	}
	return workloads, nil
}

func (r *KubernetesRuntime) SetLabel(ctx context.Context, id, key, value string) error {
	return r.patchLabel(ctx, id, key, &value)
}

func (r *KubernetesRuntime) RemoveLabel(ctx context.Context, id, key string) error {
	return r.patchLabel(ctx, id, key, nil)
}

// patchLabel issues a merge patch against the pod's labels; a nil value
// deletes the key.
func (r *KubernetesRuntime) patchLabel(ctx context.Context, id, key string, value *string) error {
	patch, err := json.Marshal(map[string]any{
		"metadata": map[string]any{
			"labels": map[string]*string{key: value},
		},
	})
	if err != nil {
		return fmt.Errorf("building label patch: %w", err)
	}
	if _, err := r.client.CoreV1().Pods(r.namespace).Patch(ctx, id, types.MergePatchType, patch, metav1.PatchOptions{}); err != nil {
		return fmt.Errorf("patching pod %s: %w", id, err)
	}
	return nil
}

// Stop deletes the pod with a grace period derived from the drain timeout.
// The pod's controller is expected to reschedule it elsewhere.
func (r *KubernetesRuntime) Stop(ctx context.Context, id string, timeout time.Duration) error {
	grace := int64(timeout / time.Second)
	if grace < 1 {
		grace = 1
	}
	r.log.Infow("Stopping pod", "pod", id, "gracePeriodSeconds", grace)
	if err := r.client.CoreV1().Pods(r.namespace).Delete(ctx, id, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	}); err != nil {
		return fmt.Errorf("deleting pod %s: %w", id, err)
	}
	return nil
}
