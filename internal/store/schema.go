// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package store

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidItemMap is returned when the input does not have the shape of
// an extractor item map.
var ErrInvalidItemMap = errors.New("invalid item map")

//go:embed items.schema.json
var itemsSchema string

var compiledSchema = jsonschema.MustCompileString("items.schema.json", itemsSchema)

// validate checks data against the item map schema before it is decoded.
// Unknown sections and unknown item fields are allowed.
func validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItemMap, err)
	}
	return nil
}
