// Package manifest defines the typed model of declared host state and the
// parser/serializer for the line-oriented manifest format. A manifest entry
// pairs a domain (packages, services, config files, container resources)
// with an identifier and a small attribute map; the parser merges
// concatenated fragments with an explicit last-occurrence-wins duplicate
// policy and the serializer emits a deterministic, round-trippable text form.
package manifest
