// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

// wiregraphctl prints the field layout of a sample record type and, given
// a hex-encoded wire payload, decodes it and prints the decoded fields.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/wiregraph/wiregraph/examples/record"
	"github.com/wiregraph/wiregraph/optional"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wiregraphctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var hexData string
	var showGraph bool

	flagSet := pflag.NewFlagSet("wiregraphctl", pflag.ContinueOnError)
	flagSet.StringVar(&hexData, "decode", "", "hex-encoded payload to decode against the sample record type")
	flagSet.BoolVar(&showGraph, "graph", false, "print the sample record type's layout")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if showGraph {
		printGraph()
	}
	if hexData != "" {
		data, err := hex.DecodeString(hexData)
		if err != nil {
			return fmt.Errorf("decoding --decode argument: %w", err)
		}
		return decodeAndPrint(data)
	}
	if !showGraph {
		printHelp(flagSet)
	}
	return nil
}

func printHelp(fs *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "wiregraphctl inspects the sample record type and decodes payloads against it.")
	fs.PrintDefaults()
}

// graphField describes one field's layout for printGraph. writeBackNote is
// absent for a field nothing patches after the fact, present (naming the
// source) for a field another field's binding writes back into -- exactly
// the "may or may not be set" shape optional.Optional exists to represent,
// rather than a pointer or a magic empty string.
type graphField struct {
	name          string
	shape         string
	writeBackNote optional.Optional[string]
}

func printGraph() {
	fields := []graphField{
		{"Magic", "uint32 (order=0, big-endian)", optional.None[string]()},
		{"Version", "uint8 (order=1)", optional.None[string]()},
		{"PayloadLen", "uint32 (order=2)", optional.Some("Payload's length binding")},
		{"Payload", "[]byte (length=PayloadLen, crc32=Checksum) (order=3)", optional.None[string]()},
		{"Checksum", "uint32 (order=4)", optional.Some("Payload's crc32 FieldValue")},
	}

	bold := color.New(color.Bold)
	bold.Println("record.Frame")
	for _, f := range fields {
		note := f.writeBackNote.String("", func(source string) string {
			return fmt.Sprintf(" <- write-back target of %s", source)
		})
		fmt.Printf("  %-10s %s%s\n", f.name, f.shape, note)
	}
}

func decodeAndPrint(data []byte) error {
	f, err := record.Decode(data)
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen)
	green.Printf("magic=%#x version=%d payloadLen=%d checksum=%#x payload=%q\n",
		f.Magic, f.Version, f.PayloadLen, f.Checksum, f.Payload)
	return nil
}
