package main

// helper to watch memory growth across forward passes

import (
	"log"
	"syscall"
)

// usedRAM returns used main memory in kB as reported by sysinfo(2).
func usedRAM() uint64 {
	si := &syscall.Sysinfo_t{}
	if err := syscall.Sysinfo(si); err != nil {
		log.Printf("syscall.Sysinfo: %v\n", err)
		return 0
	}
	unit := uint64(si.Unit)
	return (uint64(si.Totalram) - uint64(si.Freeram)) * unit / 1024
}
