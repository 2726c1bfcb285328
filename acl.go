/*
File: acl.go
Version: 1.0.0
Description: Client allowlist backed by a CIDR prefix trie.
*/

package main

import (
	"net"

	"github.com/yl2chen/cidranger"
)

// ClientACL admits clients whose address falls inside one of the configured networks.
// An ACL with no networks admits everyone.
type ClientACL struct {
	ranger cidranger.Ranger
	size   int
}

func NewClientACL(nets []*net.IPNet) *ClientACL {
	acl := &ClientACL{ranger: cidranger.NewPCTrieRanger()}
	for _, n := range nets {
		if err := acl.ranger.Insert(cidranger.NewBasicRangerEntry(*n)); err != nil {
			LogWarn("[ACL] Skipping network %s: %v", n, err)
			continue
		}
		acl.size++
	}
	return acl
}

func (a *ClientACL) Allowed(ip net.IP) bool {
	if a == nil || a.size == 0 {
		return true
	}
	if ip == nil {
		return false
	}
	ok, err := a.ranger.Contains(ip)
	return err == nil && ok
}
