/*
Copyright 2023 The Marketplace Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/crane"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const digestAnnotation = "marketplace.dev/image-digest"

// refreshDeployment compares the image digest in the registry with the
// digest recorded on the deployment and triggers a rollout only when
// they differ.
func refreshDeployment(ctx context.Context, deps Deps) error {
	cluster, err := deps.Cluster()
	if err != nil {
		return err
	}

	image := fmt.Sprintf("%s:%s", deps.Config.Image, deps.Config.ImageTag)
	digest, err := crane.Digest(image, crane.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("resolving digest of %s failed: %w", image, err)
	}

	deployment := &unstructured.Unstructured{}
	deployment.SetGroupVersionKind(schema.GroupVersionKind{
		Group:   "apps",
		Version: "v1",
		Kind:    "Deployment",
	})
	deployment.SetName(AppName)
	deployment.SetNamespace(deps.Config.Namespace)

	kubeClient := cluster.Manager().Client()
	if err := kubeClient.Get(ctx, client.ObjectKeyFromObject(deployment), deployment); err != nil {
		return fmt.Errorf("deployment/%s query failed: %w", AppName, err)
	}

	if deployment.GetAnnotations()[digestAnnotation] == digest {
		deps.Logger.Println("✔", fmt.Sprintf("deployment/%s is up to date with %s", AppName, digest))
		return nil
	}

	annotations := deployment.GetAnnotations()
	if annotations == nil {
		annotations = map[string]string{}
	}
	annotations[digestAnnotation] = digest
	deployment.SetAnnotations(annotations)

	// annotating the pod template forces a new rollout
	if err := unstructured.SetNestedField(deployment.Object, digest,
		"spec", "template", "metadata", "annotations", digestAnnotation); err != nil {
		return err
	}

	if err := kubeClient.Update(ctx, deployment); err != nil {
		return fmt.Errorf("deployment/%s update failed: %w", AppName, err)
	}

	deps.Logger.Println("✔", fmt.Sprintf("deployment/%s rolling out %s", AppName, digest))
	return nil
}

// parseOCVersion extracts a semver-ish token from the oc version output,
// accepting both 'oc v3.11.0+0cbc58b' and 'Client Version: 4.6.16'.
func parseOCVersion(output string) string {
	for _, field := range strings.Fields(output) {
		token := strings.TrimPrefix(field, "v")
		if i := strings.IndexAny(token, "+-"); i > 0 {
			token = token[:i]
		}
		if len(token) > 0 && token[0] >= '0' && token[0] <= '9' && strings.Contains(token, ".") {
			return token
		}
	}
	return output
}
