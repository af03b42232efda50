package directory

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"
)

// snmpDescription fetches sysDescr and sysLocation from a host. Used as the
// identification fallback for devices that answer a printer port but expose
// no useful IPP attributes.
func snmpDescription(ip, community string, timeout time.Duration) (descr, location string, err error) {
	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   1,
	}
	if err := client.Connect(); err != nil {
		return "", "", fmt.Errorf("snmp connect %s: %w", ip, err)
	}
	defer client.Conn.Close()

	pkt, err := client.Get([]string{oidSysDescr, oidSysLocation})
	if err != nil {
		return "", "", fmt.Errorf("snmp get %s: %w", ip, err)
	}
	for _, v := range pkt.Variables {
		s := snmpString(v)
		switch v.Name {
		case "." + oidSysDescr, oidSysDescr:
			descr = s
		case "." + oidSysLocation, oidSysLocation:
			location = s
		}
	}
	return descr, location, nil
}

func snmpString(v gosnmp.SnmpPDU) string {
	switch val := v.Value.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return ""
	}
}
