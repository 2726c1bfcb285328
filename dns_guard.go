/*
File: dns_guard.go
Version: 1.0.0
Description: DNS sinkhole in front of an upstream resolver. Hosts with a live block rule
             (or, optionally, hosts the navigation guard would block) resolve to the
             unspecified address; everything else is forwarded.
*/

package main

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

type DNSGuard struct {
	checker   *Checker
	rules     *BlockRuleTable
	acl       *ClientACL
	limiter   *Limiter
	udpClient *dns.Client
	tcpClient *dns.Client
	cfg       DNSConfig
}

func NewDNSGuard(cfg DNSConfig, checker *Checker, rules *BlockRuleTable, acl *ClientACL, limiter *Limiter) *DNSGuard {
	timeout := cfg.parsedTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DNSGuard{
		checker:   checker,
		rules:     rules,
		acl:       acl,
		limiter:   limiter,
		udpClient: &dns.Client{Net: "udp", Timeout: timeout},
		tcpClient: &dns.Client{Net: "tcp", Timeout: timeout},
		cfg:       cfg,
	}
}

func (g *DNSGuard) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	clientIP := getIPFromAddr(w.RemoteAddr())

	if !g.acl.Allowed(clientIP) {
		LogDebug("[DNS] Refused query from %s", clientIP)
		g.reply(w, new(dns.Msg).SetRcode(r, dns.RcodeRefused))
		return
	}

	action, delay, reason := g.limiter.Check(clientIP)
	switch action {
	case LimitDrop:
		LogDebug("[DNS] %s", reason)
		return
	case LimitDelay:
		time.Sleep(delay)
	}

	timeout := g.udpClient.Timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if len(r.Question) == 1 && r.Opcode == dns.OpcodeQuery {
		q := r.Question[0]
		if host := strings.TrimSuffix(strings.ToLower(q.Name), "."); g.shouldBlock(ctx, host) {
			LogInfo("[DNS] Sinkholed %s (%s) for %s", host, dns.TypeToString[q.Qtype], clientIP)
			g.reply(w, g.sinkhole(r))
			return
		}
	}

	g.reply(w, g.forward(ctx, w, r))
}

// shouldBlock never scores bare public suffixes such as "com" or "co.uk", nor allowlisted hosts.
func (g *DNSGuard) shouldBlock(ctx context.Context, host string) bool {
	if host == "" || isPublicSuffix(host) || g.checker.lists.Allowed(host) {
		return false
	}
	if g.checker.lists.Denied(host) || g.rules.HostBlocked(host) {
		return true
	}
	if !g.cfg.ScoreQueries {
		return false
	}
	return g.checker.CheckNavigation(ctx, "http://"+host).Action == ActionBlock
}

// sinkhole answers A with 0.0.0.0 and AAAA with ::. Other types get an empty NOERROR.
func (g *DNSGuard) sinkhole(r *dns.Msg) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(r)
	m.RecursionAvailable = true

	q := r.Question[0]
	hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: g.cfg.BlockTTL}
	switch q.Qtype {
	case dns.TypeA:
		m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.IPv4zero.To4()})
	case dns.TypeAAAA:
		m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.IPv6zero})
	}
	return m
}

func (g *DNSGuard) forward(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) *dns.Msg {
	client := g.udpClient
	if _, ok := w.RemoteAddr().(*net.TCPAddr); ok {
		client = g.tcpClient
	}

	resp, rtt, err := client.ExchangeContext(ctx, r, g.cfg.Upstream)
	if err != nil {
		LogWarn("[DNS] Upstream %s failed for %s: %v", g.cfg.Upstream, questionName(r), err)
		return new(dns.Msg).SetRcode(r, dns.RcodeServerFailure)
	}
	if IsDebugEnabled() {
		LogDebug("[DNS] %s answered by %s in %v (%s)", questionName(r), g.cfg.Upstream, rtt, dns.RcodeToString[resp.Rcode])
	}
	return resp
}

func (g *DNSGuard) reply(w dns.ResponseWriter, m *dns.Msg) {
	if err := w.WriteMsg(m); err != nil {
		LogDebug("[DNS] Failed to write response to %s: %v", w.RemoteAddr(), err)
	}
}

func questionName(r *dns.Msg) string {
	if len(r.Question) == 0 {
		return "<none>"
	}
	return r.Question[0].Name
}
