// Package pcicfg implements the PCIe configuration-space register file
// every port device exposes: the type-0/type-1 header, sized BAR entries,
// and the DVSEC/DOE extended capability pattern CXL rides on top of PCIe
// with, §6.
//
// Grounded on the teacher's device/descriptor.go constant-table-plus-Marshal
// pattern, generalized from one fixed descriptor shape into layout.Layout
// register files so writes get §4.1's attribute semantics (BAR probing in
// particular depends on the write-then-read-back masking law).
package pcicfg
