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

// Package reconciler manages the marketplace objects on the target
// cluster with create-or-apply semantics: an absent object is created,
// a present one is updated through server-side apply.
package reconciler

import (
	"context"
	"fmt"
	"sort"

	"github.com/fluxcd/pkg/ssa"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	nameLabelKey      = "app.kubernetes.io/name"
	componentLabelKey = "app.kubernetes.io/component"
	createdByLabelKey = "app.kubernetes.io/created-by"
)

// Logger receives progress output while objects are reconciled.
type Logger interface {
	Println(a ...interface{})
}

// Reconciler wraps a server-side apply resource manager with the
// create-or-apply contract of the ops recipes.
type Reconciler struct {
	manager *ssa.ResourceManager
	owner   ssa.Owner
	logger  Logger
}

func New(manager *ssa.ResourceManager, owner ssa.Owner, logger Logger) *Reconciler {
	return &Reconciler{
		manager: manager,
		owner:   owner,
		logger:  logger,
	}
}

// Manager exposes the underlying resource manager.
func (r *Reconciler) Manager() *ssa.ResourceManager {
	return r.manager
}

// OwnerLabels returns the labels stamped on every managed object.
func (r *Reconciler) OwnerLabels(name string) client.MatchingLabels {
	return client.MatchingLabels{
		nameLabelKey:      name,
		createdByLabelKey: r.owner.Field,
	}
}

// Exists queries objects of the given kind matching the label selector.
// An empty result or a NotFound response means absence.
func (r *Reconciler) Exists(ctx context.Context, obj *unstructured.Unstructured, selector client.MatchingLabels) (bool, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(obj.GroupVersionKind())
	err := r.manager.Client().List(ctx, list, client.InNamespace(obj.GetNamespace()), selector)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(list.Items) > 0, nil
}

// EnsureNamespace creates the namespace if not present. The check and
// the create are both idempotent; a lost race is not an error.
func (r *Reconciler) EnsureNamespace(ctx context.Context, name string) error {
	ns := &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Namespace",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				createdByLabelKey: r.owner.Field,
			},
		},
	}

	if err := r.manager.Client().Get(ctx, client.ObjectKeyFromObject(ns), ns); err != nil {
		if apierrors.IsNotFound(err) {
			if err := r.manager.Client().Create(ctx, ns); err != nil && !apierrors.IsAlreadyExists(err) {
				return fmt.Errorf("namespace/%s create failed: %w", name, err)
			}
			r.logger.Println("✔", fmt.Sprintf("namespace/%s created", name))
			return nil
		}
		return err
	}

	return nil
}

// Ensure reconciles the given objects: absent objects are created,
// present ones are updated through server-side apply with a warning
// that existing resources are being changed rather than created.
func (r *Reconciler) Ensure(ctx context.Context, name, namespace string, objects []*unstructured.Unstructured) (*ssa.ChangeSet, error) {
	r.manager.SetOwnerLabels(objects, name, namespace)
	for _, object := range objects {
		labels := object.GetLabels()
		labels[nameLabelKey] = name
		labels[createdByLabelKey] = r.owner.Field
		object.SetLabels(labels)
	}

	applyOpts := ssa.DefaultApplyOptions()
	changeSet := ssa.NewChangeSet()

	for _, object := range objects {
		exists, err := r.Exists(ctx, object, r.OwnerLabels(name))
		if err != nil {
			return nil, fmt.Errorf("%s query failed: %w", ssa.FmtUnstructured(object), err)
		}

		if !exists {
			if err := r.manager.Client().Create(ctx, object); err != nil {
				// another reconciler won the race, fall through to apply
				if !apierrors.IsAlreadyExists(err) {
					return nil, fmt.Errorf("%s create failed: %w", ssa.FmtUnstructured(object), err)
				}
			} else {
				changeSet.Add(ssa.ChangeSetEntry{
					Subject: ssa.FmtUnstructured(object),
					Action:  string(ssa.CreatedAction),
				})
				continue
			}
		}

		r.logger.Println("⚠", fmt.Sprintf("%s exists, updating instead of creating", ssa.FmtUnstructured(object)))
		entry, err := r.manager.Apply(ctx, object, applyOpts)
		if err != nil {
			return nil, err
		}
		changeSet.Add(*entry)
	}

	return changeSet, nil
}

// Apply updates the given objects through server-side apply without the
// existence gate, used for the full deployment refresh. Namespaces and
// CRDs are applied first and waited for, the rest in apply order.
func (r *Reconciler) Apply(ctx context.Context, name, namespace string, objects []*unstructured.Unstructured, waitOpts ssa.WaitOptions) (*ssa.ChangeSet, error) {
	r.manager.SetOwnerLabels(objects, name, namespace)
	applyOpts := ssa.DefaultApplyOptions()
	changeSet := ssa.NewChangeSet()

	var stageOne []*unstructured.Unstructured
	var stageTwo []*unstructured.Unstructured
	for _, u := range objects {
		if ssa.IsClusterDefinition(u) {
			stageOne = append(stageOne, u)
		} else {
			stageTwo = append(stageTwo, u)
		}
	}

	if len(stageOne) > 0 {
		cs, err := r.manager.ApplyAll(ctx, stageOne, applyOpts)
		if err != nil {
			return nil, err
		}
		changeSet.Append(cs.Entries)

		if err := r.manager.Wait(stageOne, waitOpts); err != nil {
			return nil, err
		}
	}

	sort.Sort(ssa.SortableUnstructureds(stageTwo))
	for _, object := range stageTwo {
		entry, err := r.manager.Apply(ctx, object, applyOpts)
		if err != nil {
			return nil, err
		}
		changeSet.Add(*entry)
	}

	return changeSet, nil
}

// Delete removes the given objects, ignoring the ones already gone.
func (r *Reconciler) Delete(ctx context.Context, objects []*unstructured.Unstructured) (*ssa.ChangeSet, error) {
	return r.manager.DeleteAll(ctx, objects, ssa.DefaultDeleteOptions())
}

// Wait blocks until the given objects pass their readiness checks.
func (r *Reconciler) Wait(objects []*unstructured.Unstructured, opts ssa.WaitOptions) error {
	return r.manager.Wait(objects, opts)
}
