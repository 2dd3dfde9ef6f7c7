package kube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"ci-runner-service/internal/config"
	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

var (
	jobGVR = schema.GroupVersionResource{
		Group:    "batch",
		Version:  "v1",
		Resource: "jobs",
	}
	podGVR = schema.GroupVersionResource{
		Version:  "v1",
		Resource: "pods",
	}
)

const pollInterval = 2 * time.Second

// Executor runs each step as a Kubernetes batch Job with a single pod.
// Step output is routed through the container termination message, so it
// is truncated to the kubelet's 4KiB message limit.
type Executor struct {
	client    dynamic.Interface
	namespace string
	image     string
}

func NewExecutor(cfg *config.KubernetesConfig) (*Executor, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		// Try default kubeconfig location
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "ci-runner"
	}

	return &Executor{
		client:    client,
		namespace: namespace,
		image:     cfg.Image,
	}, nil
}

func (e *Executor) Name() string { return "kubernetes" }

func (e *Executor) RunStep(ctx context.Context, ec ports.ExecContext, step domain.StepSpec) (*ports.StepOutcome, error) {
	jobName := fmt.Sprintf("ci-step-%s", uuid.New().String()[:8])

	obj := e.buildJobCR(jobName, ec, step)

	_, err := e.client.Resource(jobGVR).
		Namespace(e.namespace).
		Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("create step job: %w", err)
	}
	defer e.deleteJob(jobName)

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &ports.StepOutcome{}, domain.ErrStepTimeout
			}
			return &ports.StepOutcome{}, ctx.Err()
		case <-time.After(pollInterval):
		}

		outcome, done, err := e.podOutcome(ctx, jobName)
		if err != nil {
			return nil, err
		}
		if done {
			return outcome, nil
		}
	}
}

func (e *Executor) buildJobCR(jobName string, ec ports.ExecContext, step domain.StepSpec) *unstructured.Unstructured {
	// Mirror output to the termination message file so it can be read back
	// through the pod status without a log subresource call.
	script := fmt.Sprintf(
		"{ %s ; } > /dev/termination-log 2>&1; rc=$?; cat /dev/termination-log; exit $rc",
		step.Run,
	)

	env := []interface{}{
		map[string]interface{}{"name": "CI", "value": "true"},
		map[string]interface{}{"name": "CI_WORKFLOW", "value": ec.WorkflowName},
		map[string]interface{}{"name": "CI_RUN_ID", "value": ec.RunID.String()},
		map[string]interface{}{"name": "CI_JOB_ID", "value": ec.JobID.String()},
	}
	for _, axis := range sortedKeys(ec.Matrix) {
		env = append(env, map[string]interface{}{
			"name":  "MATRIX_" + envKey(axis),
			"value": ec.Matrix[axis],
		})
	}
	for _, k := range sortedKeys(ec.Env) {
		env = append(env, map[string]interface{}{"name": k, "value": ec.Env[k]})
	}
	for _, k := range sortedKeys(step.Env) {
		env = append(env, map[string]interface{}{"name": k, "value": step.Env[k]})
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "batch/v1",
			"kind":       "Job",
			"metadata": map[string]interface{}{
				"name": jobName,
				"labels": map[string]interface{}{
					"ci-runner/run-id": ec.RunID.String(),
					"ci-runner/job-id": ec.JobID.String(),
				},
			},
			"spec": map[string]interface{}{
				"backoffLimit":            int64(0),
				"ttlSecondsAfterFinished": int64(300),
				"template": map[string]interface{}{
					"spec": map[string]interface{}{
						"restartPolicy": "Never",
						"containers": []interface{}{
							map[string]interface{}{
								"name":    "step",
								"image":   e.image,
								"command": []interface{}{"sh", "-c", script},
								"env":     env,
							},
						},
					},
				},
			},
		},
	}
}

// podOutcome reports whether the step pod has terminated, and if so returns
// its exit code and termination message as the step output.
func (e *Executor) podOutcome(ctx context.Context, jobName string) (*ports.StepOutcome, bool, error) {
	pods, err := e.client.Resource(podGVR).
		Namespace(e.namespace).
		List(ctx, metav1.ListOptions{LabelSelector: "job-name=" + jobName})
	if err != nil {
		return nil, false, fmt.Errorf("list step pods: %w", err)
	}

	for _, pod := range pods.Items {
		statuses, found, _ := unstructured.NestedSlice(pod.Object, "status", "containerStatuses")
		if !found {
			continue
		}
		for _, cs := range statuses {
			csMap, ok := cs.(map[string]interface{})
			if !ok {
				continue
			}
			terminated, found, _ := unstructured.NestedMap(csMap, "state", "terminated")
			if !found {
				continue
			}

			exitCode, _, _ := unstructured.NestedInt64(terminated, "exitCode")
			message, _, _ := unstructured.NestedString(terminated, "message")

			return &ports.StepOutcome{
				ExitCode: int(exitCode),
				Output:   []byte(message),
			}, true, nil
		}
	}
	return nil, false, nil
}

// deleteJob is best-effort cleanup detached from the step context so a
// timed-out step still gets its job removed together with its pods.
func (e *Executor) deleteJob(jobName string) {
	propagation := metav1.DeletePropagationBackground
	_ = e.client.Resource(jobGVR).
		Namespace(e.namespace).
		Delete(context.Background(), jobName, metav1.DeleteOptions{
			PropagationPolicy: &propagation,
		})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func envKey(key string) string {
	b := []byte(key)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - ('a' - 'A')
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
		default:
			b[i] = '_'
		}
	}
	return string(b)
}
