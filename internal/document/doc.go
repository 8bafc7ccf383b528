// Package document provides an order-preserving representation of decoded
// JSON values.
//
// Redfish payloads are self-describing and their shape is not known ahead of
// time, so the crawler cannot decode them into Go structs. Decoding into
// map[string]any would lose the order in which object members appear on the
// wire, and the link extractor reports links in encounter order. Value is a
// tagged union over the six JSON kinds, and objects keep their members as an
// ordered slice.
//
// # Usage
//
//	v, err := document.Decode(body)
//	if err != nil {
//	    return err
//	}
//	v.Set("SupportedHTTPMethods", document.NewStringArray(methods))
//	out, _ := json.Marshal(v) // members are written back in their original order
package document
