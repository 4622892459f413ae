// Package scan drives the analog key matrix.
//
// The board routes 24 key positions through a 4-way multiplexer onto 6
// ADC channels. For each mux phase the [Scheduler] selects the address
// lines, waits for them to settle, captures a burst of [Frame]s and feeds
// channel ch of every frame to the key named ch*10 + phase. Phases never
// overlap, so each filter sees its samples in capture order.
//
// The hardware is reached only through the [Sampler] and [Mux]
// interfaces; package sim provides a software implementation of both.
package scan
