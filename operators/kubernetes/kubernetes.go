// Package kubernetes adapts the teacher's Kubernetes-backed Terminus
// (components/kubernetes/kubernetes.go) into an operators.Sink that runs
// one Job per pulled Record batch.
package kubernetes

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	_ "k8s.io/client-go/plugin/pkg/client/auth/gcp"

	timely "github.com/flowmesh/timely"
	"github.com/flowmesh/timely/operators"
)

// sink launches a Kubernetes Job carrying a batch of pulled Records as a
// base64-encoded JSON PAYLOAD env var, matching
// components/kubernetes/kubernetes.go's Terminus.
type sink struct {
	ctx       context.Context
	clientset *kubernetes.Clientset
	v         *viper.Viper
	batch     []operators.Record
	batchSize int
	logger    *slog.Logger
}

// NewSink builds a Kubernetes Job-launching operators.Sink from name,
// namespace, inCluster, labels, image, command, args, environment,
// deadline, privileged, and limits/requests viper keys, matching
// components/kubernetes/kubernetes.go's Terminus and spec builder.
func NewSink(ctx context.Context, v *viper.Viper, batchSize int) (operators.Sink, error) {
	clientset, err := buildClientset(v.GetBool("inCluster"))
	if err != nil {
		return nil, err
	}
	return &sink{
		ctx:       ctx,
		clientset: clientset,
		v:         v,
		batchSize: batchSize,
		logger:    slog.Default(),
	}, nil
}

func (s *sink) Drain(puller *timely.Puller[operators.Record]) {
	flush := func() {
		if len(s.batch) == 0 {
			return
		}
		if err := s.launchJob(s.batch); err != nil {
			s.logger.Error("kubernetes sink job launch failed", "error", err)
		}
		s.batch = s.batch[:0]
	}
	for {
		record, ok := puller.Pull()
		if !ok {
			if puller.Done() {
				flush()
				return
			}
			continue
		}
		s.batch = append(s.batch, record)
		if len(s.batch) >= s.batchSize {
			flush()
		}
	}
}

func (s *sink) launchJob(records []operators.Record) error {
	v := s.v
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}

	name := v.GetString("name")
	namespace := v.GetString("namespace")
	id := uuid.New().String()

	_, err = s.clientset.BatchV1().Jobs(namespace).Create(s.ctx, &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name + "-" + id, Namespace: namespace},
		Spec: batchv1.JobSpec{
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Name:      name + "-" + id,
					Namespace: namespace,
					Labels:    v.GetStringMapString("labels"),
				},
				Spec: podSpec(v, payload),
			},
		},
	}, metav1.CreateOptions{})
	return err
}

func podSpec(v *viper.Viper, payload []byte) corev1.PodSpec {
	name := v.GetString("name")
	namespace := v.GetString("namespace")
	deadline := v.GetInt64("deadline")
	privileged := v.GetBool("privileged")

	vars := []corev1.EnvVar{
		{Name: "NAMESPACE", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.namespace"}}},
		{Name: "NODE_NAME", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "spec.nodeName"}}},
		{Name: "POD_IP", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "status.podIP"}}},
		{Name: "NAME", Value: name},
		{Name: "PAYLOAD", Value: base64.StdEncoding.EncodeToString(payload)},
	}
	for k, val := range v.GetStringMapString("environment") {
		vars = append(vars, corev1.EnvVar{Name: k, Value: val})
	}

	limits := resourceList(v, "limits.cpu", "limits.memory", "2000m", "2000Mi")
	requests := resourceList(v, "requests.cpu", "requests.memory", "2000m", "2000Mi")

	return corev1.PodSpec{
		RestartPolicy:         corev1.RestartPolicyNever,
		ActiveDeadlineSeconds: &deadline,
		PodAntiAffinity: &corev1.PodAntiAffinity{
			PreferredDuringSchedulingIgnoredDuringExecution: []corev1.WeightedPodAffinityTerm{
				{
					Weight: 100,
					PodAffinityTerm: corev1.PodAffinityTerm{
						TopologyKey:   "kubernetes.io/hostname",
						LabelSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"namespace": namespace, "app": name}},
					},
				},
			},
		},
		Containers: []corev1.Container{
			{
				Name:            name,
				Image:           v.GetString("image"),
				ImagePullPolicy: corev1.PullAlways,
				Env:             vars,
				Command:         v.GetStringSlice("command"),
				Args:            v.GetStringSlice("args"),
				Resources:       corev1.ResourceRequirements{Limits: limits, Requests: requests},
				SecurityContext: &corev1.SecurityContext{Privileged: &privileged},
			},
		},
	}
}

func resourceList(v *viper.Viper, cpuKey, memKey, cpuDefault, memDefault string) corev1.ResourceList {
	cpu := v.GetString(cpuKey)
	if cpu == "" {
		cpu = cpuDefault
	}
	mem := v.GetString(memKey)
	if mem == "" {
		mem = memDefault
	}
	return corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse(cpu),
		corev1.ResourceMemory: resource.MustParse(mem),
	}
}

func buildClientset(inCluster bool) (*kubernetes.Clientset, error) {
	if inCluster {
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
		return kubernetes.NewForConfig(config)
	}

	kubeconfig := filepath.Join(homedir.HomeDir(), ".kube", "config")
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(config)
}
