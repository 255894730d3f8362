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

package reconciler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fluxcd/pkg/ssa"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/json"
	"sigs.k8s.io/cli-utils/pkg/object"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	inventoryComponent = "inventory"
	inventoryPrefix    = "mkops-"
)

// Inventory records the objects applied on the cluster under a given
// deployment name, so a later delete removes exactly what was applied.
type Inventory struct {
	Name      string  `json:"name"`
	Namespace string  `json:"namespace"`
	Entries   []Entry `json:"entries"`
}

// Entry is a reference to an applied object.
type Entry struct {
	// ObjectID is the object metadata in the format 'namespace_name_group_kind'.
	ObjectID string `json:"id"`

	// ObjectVersion is the API version of the object kind.
	ObjectVersion string `json:"ver"`
}

func NewInventory(name, namespace string) *Inventory {
	return &Inventory{
		Name:      name,
		Namespace: namespace,
		Entries:   []Entry{},
	}
}

// AddObjects appends the given objects to the inventory.
func (inv *Inventory) AddObjects(objects []*unstructured.Unstructured) error {
	for _, om := range objects {
		objMetadata := object.UnstructuredToObjMetadata(om)
		gv, err := schema.ParseGroupVersion(om.GetAPIVersion())
		if err != nil {
			return err
		}

		inv.Entries = append(inv.Entries, Entry{
			ObjectID:      objMetadata.String(),
			ObjectVersion: gv.Version,
		})
	}

	return nil
}

// ListObjects returns the inventory entries as unstructured objects,
// sorted in apply order.
func (inv *Inventory) ListObjects() ([]*unstructured.Unstructured, error) {
	objects := make([]*unstructured.Unstructured, 0, len(inv.Entries))
	for _, entry := range inv.Entries {
		objMetadata, err := object.ParseObjMetadata(entry.ObjectID)
		if err != nil {
			return nil, err
		}

		u := &unstructured.Unstructured{}
		u.SetGroupVersionKind(schema.GroupVersionKind{
			Group:   objMetadata.GroupKind.Group,
			Kind:    objMetadata.GroupKind.Kind,
			Version: entry.ObjectVersion,
		})
		u.SetName(objMetadata.Name)
		u.SetNamespace(objMetadata.Namespace)
		objects = append(objects, u)
	}

	sort.Sort(ssa.SortableUnstructureds(objects))
	return objects, nil
}

// SaveInventory creates or updates the inventory storage ConfigMap.
func (r *Reconciler) SaveInventory(ctx context.Context, inv *Inventory) error {
	data, err := json.Marshal(inv.Entries)
	if err != nil {
		return err
	}

	cm := r.inventoryConfigMap(inv.Name, inv.Namespace)
	cm.Annotations = map[string]string{
		r.owner.Group + "/last-applied-time": time.Now().UTC().Format(time.RFC3339),
	}
	cm.Data = map[string]string{
		inventoryComponent: string(data),
	}

	opts := []client.PatchOption{
		client.ForceOwnership,
		client.FieldOwner(r.owner.Field),
	}
	return r.manager.Client().Patch(ctx, cm, client.Apply, opts...)
}

// GetInventory retrieves the recorded entries. A missing inventory is
// returned as NotFound for the caller to decide.
func (r *Reconciler) GetInventory(ctx context.Context, inv *Inventory) error {
	cm := r.inventoryConfigMap(inv.Name, inv.Namespace)
	cmKey := client.ObjectKeyFromObject(cm)
	if err := r.manager.Client().Get(ctx, cmKey, cm); err != nil {
		return err
	}

	if _, ok := cm.Data[inventoryComponent]; !ok {
		return fmt.Errorf("inventory data not found in ConfigMap/%s", cmKey)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(cm.Data[inventoryComponent]), &entries); err != nil {
		return err
	}
	inv.Entries = entries

	return nil
}

// DeleteInventory removes the inventory storage for the given name.
func (r *Reconciler) DeleteInventory(ctx context.Context, inv *Inventory) error {
	cm := r.inventoryConfigMap(inv.Name, inv.Namespace)
	if err := r.manager.Client().Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete ConfigMap/%s: %w", client.ObjectKeyFromObject(cm), err)
	}
	return nil
}

func (r *Reconciler) inventoryConfigMap(name, namespace string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      inventoryPrefix + name,
			Namespace: namespace,
			Labels: map[string]string{
				nameLabelKey:      name,
				componentLabelKey: inventoryComponent,
				createdByLabelKey: r.owner.Field,
			},
		},
	}
}
