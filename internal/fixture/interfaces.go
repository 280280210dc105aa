package fixture

import "memscope/process"

// Interface is one registry entry. A zero Object leaves the factory null.
type Interface struct {
	Name   string
	Object process.ProcessMemoryAddress
}

// InterfaceList builds the registry's linked list in the given order and
// returns the head entry, or 0 for an empty list.
func (a *Arena) InterfaceList(ifaces []Interface) process.ProcessMemoryAddress {
	var next process.ProcessMemoryAddress
	for i := len(ifaces) - 1; i >= 0; i-- {
		entry := a.Alloc(24)

		if ifaces[i].Object != 0 {
			a.PutPointer(entry, a.LeaRet(ifaces[i].Object))
		}
		a.PutPointer(entry+8, a.CString(ifaces[i].Name))
		a.PutPointer(entry+16, next)

		next = entry
	}
	return next
}

// CreateInterface writes the export stub whose `mov r9` references a slot
// holding head. It returns the export address.
func (a *Arena) CreateInterface(head process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	slot := a.Alloc(8)
	a.PutPointer(slot, head)
	return a.MovR9(slot)
}

// Object allocates an opaque interface object of size bytes.
func (a *Arena) Object(size int) process.ProcessMemoryAddress {
	return a.Alloc(size)
}
