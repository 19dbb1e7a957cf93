// Package manifest builds the Helm values document of a stack.
//
// The document has three kinds of top-level keys:
//
//	global:
//	  namespace: dev
//	  timezone: Europe/Lisbon
//	webStack:
//	  enabled: true
//	  apps:
//	    api: true
//	api:
//	  image:
//	    repository: myapi
//	    tag: "1.0"
//	  deployment:
//	    enabled: true
//	    replicaCount: 1
//
// # App blocks
//
// Each enabled App contributes a block built from its defaultConfig, image,
// ports, resources and probe paths. Manifest kinds come from the App's
// category defaults overlaid by the App's own manifest rows, walked in
// creation priority order. A kind is written when it is required or its
// creation condition holds against the block built so far, so toggles such
// as persistence.enabled must live in the App's defaultConfig.
//
// # Merging
//
// DeepMerge recurses into maps and replaces lists, except for the keys in
// UnionKeys and ExtendKeys. A manifest sub-block is layered as the entry's
// defaults, FixedDefaults, the App's toggle block (ToggleBlocks) and its
// block under the kind's key, then the entry's template overrides.
package manifest
