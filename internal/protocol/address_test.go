package protocol

import "testing"

func TestAddressListFailoverPreservesOrder(t *testing.T) {
	desc := Description{
		Addresses: []Address{{Host: "a", Port: 1521}, {Host: "b", Port: 1521}, {Host: "c", Port: 1521}},
	}
	al, err := NewAddressList(desc)
	if err != nil {
		t.Fatalf("NewAddressList: %v", err)
	}
	got := al.Attempts()
	want := []string{"a:1521", "b:1521", "c:1521"}
	for i, a := range got {
		if a.String() != want[i] {
			t.Fatalf("FAILOVER order mismatch at %d: got %s, want %s", i, a.String(), want[i])
		}
	}
}

func TestAddressListLoadBalanceContainsAll(t *testing.T) {
	desc := Description{
		Addresses:   []Address{{Host: "a", Port: 1521}, {Host: "b", Port: 1521}, {Host: "c", Port: 1521}},
		LoadBalance: true,
	}
	al, err := NewAddressList(desc)
	if err != nil {
		t.Fatalf("NewAddressList: %v", err)
	}
	got := al.Attempts()
	if len(got) != 3 {
		t.Fatalf("expected 3 addresses, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, a := range got {
		seen[a.String()] = true
	}
	for _, want := range []string{"a:1521", "b:1521", "c:1521"} {
		if !seen[want] {
			t.Fatalf("expected %s in shuffled attempts", want)
		}
	}
}

func TestNewAddressListRejectsEmpty(t *testing.T) {
	if _, err := NewAddressList(Description{}); err == nil {
		t.Fatalf("expected error for empty address list")
	}
}
