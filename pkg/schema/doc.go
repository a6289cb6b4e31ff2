// Package schema implements the schema registry and the Converter
// contract. A Converter turns one pv.Update into one framed byte buffer;
// the Registry maps a schema name to a factory that builds converters for
// that schema. Converters constructed with a non-empty identity are shared
// across Streams: the Registry refcounts each named instance and drops it
// when the last referencing Stream releases it, so no cyclic
// Stream/ConversionPath/Converter/registry ownership can form.
package schema
