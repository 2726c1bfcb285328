/*
File: domain_lists.go
Version: 1.0.0
Description: Operator allow/deny domain lists, kept in a reversed-label trie.
             Entries are exact ("example.com") or wildcard ("*.example.com", ".example.com").
             List files use one domain per line or HOSTS format ("0.0.0.0 example.com").
*/

package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

type trieNode struct {
	children map[string]*trieNode
	exact    bool
	wildcard bool
}

// DomainTrie matches hostnames against exact and wildcard entries.
type DomainTrie struct {
	root *trieNode
	size int
}

func NewDomainTrie() *DomainTrie {
	return &DomainTrie{root: &trieNode{}}
}

// Insert adds an entry. A leading "." marks both the domain and its subdomains.
func (t *DomainTrie) Insert(domain string) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return
	}

	wildcard, exact := false, true
	switch {
	case strings.HasPrefix(domain, "*."):
		wildcard, exact = true, false
		domain = domain[2:]
	case strings.HasPrefix(domain, "."):
		wildcard = true
		domain = domain[1:]
	}

	node := t.root
	labels := strings.Split(domain, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		if labels[i] == "" {
			continue
		}
		if node.children == nil {
			node.children = make(map[string]*trieNode)
		}
		child, ok := node.children[labels[i]]
		if !ok {
			child = &trieNode{}
			node.children[labels[i]] = child
		}
		node = child
	}
	if node == t.root {
		return
	}
	node.exact = node.exact || exact
	node.wildcard = node.wildcard || wildcard
	t.size++
}

// Match reports whether host equals an exact entry or sits below a wildcard entry.
func (t *DomainTrie) Match(host string) bool {
	if t == nil || t.size == 0 {
		return false
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	node := t.root
	end := len(host)
	for end > 0 {
		start := strings.LastIndexByte(host[:end], '.')
		next, ok := node.children[host[start+1:end]]
		if !ok {
			return false
		}
		node = next
		if start == -1 {
			return node.exact
		}
		if node.wildcard {
			return true
		}
		end = start
	}
	return false
}

func (t *DomainTrie) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// DomainLists holds the operator's allow and deny lists. Allow wins over deny.
type DomainLists struct {
	allow *DomainTrie
	deny  *DomainTrie
}

// Allowed reports an allowlisted host.
func (d *DomainLists) Allowed(host string) bool {
	return d != nil && d.allow.Match(host)
}

// Denied reports a denylisted host that is not also allowlisted.
func (d *DomainLists) Denied(host string) bool {
	return d != nil && !d.allow.Match(host) && d.deny.Match(host)
}

// LoadDomainLists builds both lists from inline entries and list files.
func LoadDomainLists(cfg GuardConfig) (*DomainLists, error) {
	lists := &DomainLists{allow: NewDomainTrie(), deny: NewDomainTrie()}
	for _, d := range cfg.AllowDomains {
		lists.allow.Insert(d)
	}
	for _, d := range cfg.DenyDomains {
		lists.deny.Insert(d)
	}
	for _, path := range cfg.AllowFiles {
		if err := loadDomainFile(path, lists.allow); err != nil {
			return nil, err
		}
	}
	for _, path := range cfg.DenyFiles {
		if err := loadDomainFile(path, lists.deny); err != nil {
			return nil, err
		}
	}
	if lists.allow.Len() > 0 || lists.deny.Len() > 0 {
		LogInfo("[LISTS] Loaded domain lists (Allow: %d, Deny: %d)", lists.allow.Len(), lists.deny.Len())
	}
	return lists, nil
}

func loadDomainFile(path string, t *DomainTrie) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open domain list: %w", err)
	}
	defer f.Close()
	n, err := parseDomainList(f, t)
	if err != nil {
		return fmt.Errorf("failed to read domain list %s: %w", path, err)
	}
	LogDebug("[LISTS] %s: %d entries", path, n)
	return nil
}

// parseDomainList reads plain or HOSTS-format lines into t and returns the entry count.
func parseDomainList(r io.Reader, t *DomainTrie) (int, error) {
	n := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		names := fields
		if net.ParseIP(fields[0]) != nil {
			names = fields[1:]
		}
		for _, name := range names {
			if name == "localhost" || net.ParseIP(name) != nil {
				continue
			}
			t.Insert(name)
			n++
		}
	}
	return n, sc.Err()
}
