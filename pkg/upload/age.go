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

package upload

import (
	"bytes"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// ParseRecipients reads an age recipients file.
func ParseRecipients(filePath string) ([]age.Recipient, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return age.ParseRecipients(f)
}

// ParseIdentities reads an age identities file.
func ParseIdentities(filePath string) ([]age.Identity, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return age.ParseIdentities(f)
}

// Encrypt armors the archive for the given recipients.
func Encrypt(data []byte, recipients []age.Recipient) ([]byte, error) {
	buffer := &bytes.Buffer{}
	aw := armor.NewWriter(buffer)
	w, err := age.Encrypt(aw, recipients...)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := aw.Close(); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// Decrypt reverses Encrypt with the given identities.
func Decrypt(data []byte, identities []age.Identity) ([]byte, error) {
	ar := armor.NewReader(bytes.NewReader(data))
	r, err := age.Decrypt(ar, identities...)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	if _, err := io.Copy(buffer, r); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}
