// ABOUTME: mDNS zone wrapper for published announcements
// ABOUTME: Applies the SRV priority and weight of the announcement to answers
package multicast

import (
	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
)

// srvZone overrides the fixed SRV priority and weight of mdns.MDNSService
type srvZone struct {
	zone     mdns.Zone
	priority uint16
	weight   uint16
}

var _ mdns.Zone = (*srvZone)(nil)

func (z *srvZone) Records(q dns.Question) []dns.RR {
	rrs := z.zone.Records(q)
	for i, rr := range rrs {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		cp := *srv
		cp.Priority = z.priority
		cp.Weight = z.weight
		rrs[i] = &cp
	}
	return rrs
}

// goodbye builds an unsolicited response announcing the service records of
// zone with TTL 0, which tells caches the instance is gone. Host address
// records stay out since other publications of the host still use them.
func goodbye(zone mdns.Zone, serviceAddr string) *dns.Msg {
	rrs := zone.Records(dns.Question{
		Name:   serviceAddr,
		Qtype:  dns.TypePTR,
		Qclass: dns.ClassINET,
	})
	if len(rrs) == 0 {
		return nil
	}

	msg := new(dns.Msg)
	msg.Response = true
	msg.Authoritative = true
	for _, rr := range rrs {
		switch rr.(type) {
		case *dns.PTR, *dns.SRV, *dns.TXT:
		default:
			continue
		}
		cp := dns.Copy(rr)
		cp.Header().Ttl = 0
		msg.Answer = append(msg.Answer, cp)
	}
	if len(msg.Answer) == 0 {
		return nil
	}
	return msg
}
