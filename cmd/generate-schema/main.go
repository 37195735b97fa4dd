// Command generate-schema writes the JSON schema of the hsha configuration
// file, for editor completion and validation of config.yaml.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/hsha/pkg/config"
	"github.com/spf13/pflag"
)

const modulePath = "github.com/marmos91/hsha"

func main() {
	output := pflag.StringP("output", "o", "config.schema.json", "Schema file to write (- for stdout)")
	sourceDir := pflag.String("source", "./pkg", "Source tree to read field comments from")
	pflag.Parse()

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
	}

	// Field comments become schema descriptions when the source tree is
	// available; the schema is still valid without them.
	if err := reflector.AddGoComments(modulePath, *sourceDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: field descriptions unavailable: %v\n", err)
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "hsha Configuration"
	schema.Description = "Configuration file for the hsha half-sync/half-async echo server"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	if *output == "-" {
		fmt.Println(string(schemaJSON))
		return
	}

	if err := os.WriteFile(*output, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", *output)
}
