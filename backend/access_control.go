// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/c2FmZQ/storage"
)

const accessPolicyFile = "sys_access_policy"

// AccessPolicy decides which users may score for which accounts.
type AccessPolicy struct {
	// DefaultPolicy applies to accounts without a member list: "allow" or
	// "deny".
	DefaultPolicy      string              `json:"defaultPolicy"`
	DefaultDenyMessage string              `json:"defaultDenyMessage,omitempty"`
	Admins             []string            `json:"admins"`
	Accounts           map[string][]string `json:"accounts"` // accountId -> member emails
}

// AccessControl answers account membership questions.
type AccessControl struct {
	// Bootstrap admin email (from flag)
	bootstrapAdmin string
	storage        *storage.Storage

	mu     sync.RWMutex
	policy *AccessPolicy
}

// NewAccessControl creates a new AccessControl service. A nil storage keeps
// the policy in memory.
func NewAccessControl(s *storage.Storage, bootstrapAdmin string) *AccessControl {
	return &AccessControl{
		storage:        s,
		bootstrapAdmin: normalizeEmail(bootstrapAdmin),
	}
}

// Load reads the stored policy. A missing policy leaves access open.
func (ac *AccessControl) Load() error {
	if ac.storage == nil {
		return nil
	}
	var p AccessPolicy
	if err := ac.storage.ReadDataFile(accessPolicyFile, &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("ReadDataFile: %w", err)
	}
	ac.mu.Lock()
	ac.policy = &p
	ac.mu.Unlock()
	return nil
}

// SetPolicy validates, stores and activates a policy.
func (ac *AccessControl) SetPolicy(p AccessPolicy) error {
	if p.DefaultPolicy != "allow" && p.DefaultPolicy != "deny" {
		return fmt.Errorf("invalid default policy %q", p.DefaultPolicy)
	}
	for i, a := range p.Admins {
		p.Admins[i] = normalizeEmail(a)
	}
	for id, members := range p.Accounts {
		normalized := make([]string, len(members))
		for i, m := range members {
			normalized[i] = normalizeEmail(m)
		}
		p.Accounts[id] = normalized
	}
	if ac.storage != nil {
		if err := ac.storage.SaveDataFile(accessPolicyFile, &p); err != nil {
			return fmt.Errorf("storage.SaveDataFile: %w", err)
		}
	}
	ac.mu.Lock()
	ac.policy = &p
	ac.mu.Unlock()
	return nil
}

// Policy returns a copy of the active policy, or nil when access is open.
func (ac *AccessControl) Policy() *AccessPolicy {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	if ac.policy == nil {
		return nil
	}
	p := *ac.policy
	return &p
}

// IsAdmin checks if a user has admin privileges.
func (ac *AccessControl) IsAdmin(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	if ac.bootstrapAdmin != "" && email == ac.bootstrapAdmin {
		return true
	}
	p := ac.Policy()
	return p != nil && slices.Contains(p.Admins, email)
}

// CanScore reports whether the user may read and write the account's
// score events, with a denial message when not.
func (ac *AccessControl) CanScore(email, accountID string) (bool, string) {
	email = normalizeEmail(email)
	if email == "" {
		return false, "Authentication required"
	}
	if ac.IsAdmin(email) {
		return true, ""
	}
	p := ac.Policy()
	if p == nil {
		return true, ""
	}
	if members, ok := p.Accounts[accountID]; ok {
		if slices.Contains(members, email) {
			return true, ""
		}
		return false, "Not a member of account " + accountID
	}
	if strings.EqualFold(p.DefaultPolicy, "deny") {
		return false, p.DefaultDenyMessage
	}
	return true, ""
}
