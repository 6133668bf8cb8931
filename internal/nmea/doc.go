// Package nmea validates and decodes NMEA 0183 sentences.
//
// Validation (checksum and framing) is separate from parsing so that callers
// can record every classified line before deciding what to do with it:
//   - Validate classifies a raw line as valid, checksum-fail or malformed.
//   - Parse decodes a valid payload into one of the Sentence variants.
package nmea
