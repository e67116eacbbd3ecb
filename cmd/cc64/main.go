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
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cc64/cc64/internal/codegen"
	"github.com/cc64/cc64/internal/driver"
)

var command = &cobra.Command{
	Use:  "cc64 source.c [-o output_directory]",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.PersistentFlags().GetString("output")
		target, _ := cmd.PersistentFlags().GetString("target")
		includePaths, _ := cmd.PersistentFlags().GetStringSlice("include-path")
		defines, _ := cmd.PersistentFlags().GetStringSlice("define")
		intelSyntax, _ := cmd.PersistentFlags().GetBool("intel-syntax")
		asmOnly, _ := cmd.PersistentFlags().GetBool("assembly")
		objMode, _ := cmd.PersistentFlags().GetBool("obj")

		syntax := codegen.ATT
		if intelSyntax {
			syntax = codegen.Intel
		}
		kind := driver.Assembly
		if objMode {
			kind = driver.Object
		}

		d, err := driver.New(driver.Options{
			Output:       output,
			Target:       target,
			Syntax:       syntax,
			Kind:         kind,
			IncludeDirs:  includePaths,
			Defines:      defines,
			AssembleOnly: asmOnly,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if _, err := d.Compile(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	command.PersistentFlags().StringP("output", "o", "", "output directory of generated files")
	command.PersistentFlags().StringP("target", "t", "linux-amd64", "target (linux-amd64, windows-amd64, dos16)")
	command.PersistentFlags().StringSliceP("include-path", "I", nil, "additional #include search path")
	command.PersistentFlags().StringSliceP("define", "D", nil, "predefine a macro as NAME[=value]")
	command.PersistentFlags().Bool("intel-syntax", false, "emit Intel-syntax assembly instead of AT&T")
	command.PersistentFlags().BoolP("assembly", "S", false, "stop after emitting assembly text, skip assembling and linking")
	command.PersistentFlags().Bool("obj", false, "use direct-object codegen instead of assembly text")
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
