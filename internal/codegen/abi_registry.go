// Copyright 2026 cc64 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codegen

import "fmt"

// ABIDescriptor names one target ABI for driver-facing lookup (the --target
// flag, the bootstrap harness). It mirrors arch.go's ArchParser: a small
// interface wrapping a name and the behavior the driver needs, registered
// into a shared map instead of switched on inline.
type ABIDescriptor interface {
	// Name returns the driver-facing target name (e.g. "linux-amd64").
	Name() string

	// ABI returns the codegen.ABI this descriptor selects.
	ABI() ABI

	// ObjectFormat names the relocatable object container this target's
	// object mode writes ("coff", "elf", or "" for DOS16's flat image).
	ObjectFormat() string
}

type abiDescriptor struct {
	name   string
	abi    ABI
	format string
}

func (d abiDescriptor) Name() string         { return d.name }
func (d abiDescriptor) ABI() ABI             { return d.abi }
func (d abiDescriptor) ObjectFormat() string { return d.format }

// abiDescriptors holds every registered target, keyed by driver-facing name.
var abiDescriptors = map[string]ABIDescriptor{}

// RegisterABI registers a target ABI under name, the same shape as arch.go's
// RegisterParser. Called from init() below for the three built-in targets;
// exists as a standalone function (rather than inlined into init) so a future
// target can register itself from another file without editing this one.
func RegisterABI(name string, d ABIDescriptor) {
	abiDescriptors[name] = d
}

// GetABI returns the descriptor registered under name.
func GetABI(name string) (ABIDescriptor, error) {
	if d, ok := abiDescriptors[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("codegen: unsupported target %q (available: %v)", name, ListTargets())
}

// ListTargets returns every registered target name.
func ListTargets() []string {
	names := make([]string, 0, len(abiDescriptors))
	for name := range abiDescriptors {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterABI("linux-amd64", abiDescriptor{name: "linux-amd64", abi: SysV, format: "elf"})
	RegisterABI("windows-amd64", abiDescriptor{name: "windows-amd64", abi: Win64, format: "coff"})
	RegisterABI("dos16", abiDescriptor{name: "dos16", abi: DOS16, format: ""})
}
