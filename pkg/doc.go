// Package pkg provides the core libraries for ordpilot circuit generation.
//
// # Overview
//
// Ordpilot turns natural-language requests into validated ORD circuit
// schematics through a generate-validate-repair loop. The pkg directory is
// organized into five main areas:
//
//  1. [pipeline] - Orchestration (classify, generate, validate, repair)
//  2. [validate] - Staged validation and the isolated worker protocol
//  3. [ord], [ord/ordrt] - ORD source handling and the reference runtime
//  4. [llm], [retrieval] - Model providers and example retrieval
//  5. [session], [cache], [config] - Supporting infrastructure
//
// # Architecture
//
// The typical data flow through ordpilot:
//
//	User request
//	         ↓
//	    [retrieval] package (find grounding examples)
//	         ↓
//	    [llm] package (generate ORD source)
//	         ↓
//	    [validate] package (staged validation in a worker process)
//	         ↓
//	    [repair] package (textual spacing fixes)
//	         ↓
//	    Validated source + schematic SVG
//
// # Quick Start
//
// Run the pipeline programmatically:
//
//	runner := pipeline.NewRunner(provider, validator, index, logger)
//	result, err := runner.Run(ctx, "design a differential pair", nil)
//
// Validate existing source without a model:
//
//	outcome := validate.Full(ordrt.New(), source, nil, validate.DefaultMinGap)
package pkg
