// Package compreg implements the CXL Component Register block every port
// device exposes behind its DVSEC pointer: RAS, Link, the HDM Decoder
// capability/control array, BI Decoder, BI Route Table, and Cache-ID
// Decoder/Route Table register files, §6.
//
// The HDM decoder slot layout is the one register file this module's
// testable properties depend on directly (§8 property 3/4), so its field
// widths are taken verbatim from the specification rather than guessed:
// base_low/size_low mask to 256 MiB alignment, and the control DWORD packs
// IG, IW, and the commit/committed handshake bits the hdm package drives.
package compreg
