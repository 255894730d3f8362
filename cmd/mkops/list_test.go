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
	"testing"

	. "github.com/onsi/gomega"
)

func TestList(t *testing.T) {
	g := NewWithT(t)

	output, err := executeCommand("list")
	g.Expect(err).NotTo(HaveOccurred())

	for _, name := range []string{"reinit-db", "oc-deploy", "upload-data", "build"} {
		g.Expect(output).To(ContainSubstring(name))
	}

	// prerequisites are listed next to the recipe
	g.Expect(output).To(ContainSubstring("oc-project oc-create-secret"))
}
