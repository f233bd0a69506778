// Package selection filters caller-offered files down to convertible HEIC
// inputs and owns the source-to-target filename mapping rule.
package selection
