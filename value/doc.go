// Package value converts between typed WASM scalars and the boxed 64-bit
// slots host callbacks exchange.
//
// Every scalar crosses the host boundary as a Boxed (int64):
//
//	i32  sign-extended to 64 bits
//	i64  all 64 bits
//	f32  IEEE-754 bits, zero-extended
//	f64  IEEE-754 bits
//
// Floats always travel by bit pattern, so NaN payloads survive a round
// trip. Value holds the same bits wazero keeps on its stack, which makes
// FromStack and ToStack plain copies.
package value
