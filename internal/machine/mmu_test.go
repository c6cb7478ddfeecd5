package machine

import "testing"

func TestTranslateDirectModeIsIdentity(t *testing.T) {
	m := NewMachine(0, 0x10000, 0)
	got, err := m.Translate(0x1234, AccessRead)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if got != 0x1234 {
		t.Fatalf("direct translate = 0x%x, want 0x1234", got)
	}
}

func TestTranslateWalksPageTables(t *testing.T) {
	m := NewMachine(0, 0x200000, 0)
	const satp = 0x80000000 | (0x1000 >> 12)
	m.CPU.CSR[csrIxSatp] = satp

	vaddr := uint32(0x00401000) // VPN[1]=1, VPN[0]=1, offset=0
	pageDir := uint32(0x1000)
	pt := uint32(0x2000)
	frame := uint32(0x3000)

	pdeAddr := pageDir + 4*(vaddr>>22)
	m.Bus.WritePhysical(pdeAddr, 4, (pt>>12)<<10|0x1)

	pteAddr := pt + 4*((vaddr>>12)&0x3FF)
	m.Bus.WritePhysical(pteAddr, 4, (frame>>12)<<10|0xF) // V|R|W|X

	got, err := m.Translate(vaddr, AccessRead)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	want := frame | (vaddr & pageMask)
	if got != want {
		t.Fatalf("translate = 0x%x, want 0x%x", got, want)
	}
}

func TestTranslateRejectsMissingWritePermission(t *testing.T) {
	m := NewMachine(0, 0x200000, 0)
	m.CPU.CSR[csrIxSatp] = 0x80000000 | (0x1000 >> 12)

	vaddr := uint32(0x00401000)
	pageDir := uint32(0x1000)
	pt := uint32(0x2000)
	frame := uint32(0x3000)

	m.Bus.WritePhysical(pageDir+4*(vaddr>>22), 4, (pt>>12)<<10|0x1)
	m.Bus.WritePhysical(pt+4*((vaddr>>12)&0x3FF), 4, (frame>>12)<<10|0xB) // V|X|R, no W

	if _, err := m.Translate(vaddr, AccessWrite); err == nil {
		t.Fatalf("expected permission fault on missing write bit")
	}
}

func TestVAddrAccessRejectsPageCrossing(t *testing.T) {
	m := NewMachine(0, 0x10000, 0)
	if _, err := m.VAddrRead(0xFFC, 8); err == nil {
		t.Fatalf("expected a page-crossing fault")
	}
}

func TestVAddrReadWriteRoundTrip(t *testing.T) {
	m := NewMachine(0, 0x10000, 0)
	if err := m.VAddrWrite(0x100, 4, 0xDEADBEEF); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.VAddrRead(0x100, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("read = 0x%x, want 0xDEADBEEF", got)
	}
}
