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

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/random"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	. "github.com/onsi/gomega"

	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

func TestRunUnknownRecipe(t *testing.T) {
	g := NewWithT(t)

	_, err := executeCommand("run no-such-recipe")
	g.Expect(err).To(HaveOccurred())

	var cfgErr *recipe.ConfigurationError
	g.Expect(errors.As(err, &cfgErr)).To(BeTrue())
}

func TestRunInvalidParams(t *testing.T) {
	g := NewWithT(t)

	_, err := executeCommand("run upload-data not-a-pair")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("key=value"))
}

func TestRunWithoutRecipeName(t *testing.T) {
	g := NewWithT(t)

	_, err := executeCommand("run")
	g.Expect(err).To(HaveOccurred())
}

func TestRunStepOutlivesTimeout(t *testing.T) {
	g := NewWithT(t)

	// a step taking longer than --timeout must not be killed
	t.Setenv("MARKETPLACE_MANAGE", "sh -c 'sleep 2' --")
	defer func() { rootArgs.timeout = time.Minute }()

	_, err := executeCommand("run server-migrate --timeout 500ms")
	g.Expect(err).NotTo(HaveOccurred())
}

func TestRunDeleteWithoutInventory(t *testing.T) {
	g := NewWithT(t)
	id := "delete-" + randStringRunes(5)

	err := createNamespace(id)
	g.Expect(err).NotTo(HaveOccurred())

	// nothing was deployed, the recipe warns and succeeds
	_, err = executeCommand("run oc-delete-marketplace -n " + id)
	g.Expect(err).NotTo(HaveOccurred())
}

func TestRunRefresh(t *testing.T) {
	g := NewWithT(t)
	id := "refresh-" + randStringRunes(5)

	err := createNamespace(id)
	g.Expect(err).NotTo(HaveOccurred())

	img, err := random.Image(1024, 1)
	g.Expect(err).NotTo(HaveOccurred())

	imageName := fmt.Sprintf("%s/marketplace/server", registryHost)
	err = crane.Push(img, imageName+":latest")
	g.Expect(err).NotTo(HaveOccurred())

	digest, err := img.Digest()
	g.Expect(err).NotTo(HaveOccurred())

	t.Setenv("MARKETPLACE_IMAGE", imageName)
	t.Setenv("MARKETPLACE_IMAGE_TAG", "latest")

	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "marketplace",
			Namespace: id,
		},
		Spec: appsv1.DeploymentSpec{
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": "marketplace"},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app": "marketplace"},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "server", Image: imageName + ":latest"},
					},
				},
			},
		},
	}
	err = envTestClient.Create(context.Background(), deployment)
	g.Expect(err).NotTo(HaveOccurred())

	t.Run("annotates the deployment", func(t *testing.T) {
		_, err := executeCommand("run oc-refresh -n " + id)
		g.Expect(err).NotTo(HaveOccurred())

		result := &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "marketplace",
				Namespace: id,
			},
		}
		err = envTestClient.Get(context.Background(), client.ObjectKeyFromObject(result), result)
		g.Expect(err).NotTo(HaveOccurred())

		g.Expect(result.Annotations).To(HaveKeyWithValue("marketplace.dev/image-digest", digest.String()))
		g.Expect(result.Spec.Template.Annotations).To(HaveKeyWithValue("marketplace.dev/image-digest", digest.String()))
	})

	t.Run("is a no-op when the digest is unchanged", func(t *testing.T) {
		_, err := executeCommand("run oc-refresh -n " + id)
		g.Expect(err).NotTo(HaveOccurred())
	})
}
