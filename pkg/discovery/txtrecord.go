package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeAnnouncementTXT creates the TXT records for an announcement.
func EncodeAnnouncementTXT(a *Announcement) TXTRecordMap {
	txt := make(TXTRecordMap)
	txt[TXTKeyName] = a.Name
	txt[TXTKeyID] = formatID(a.ID)
	txt[TXTKeyToken] = a.Token
	if a.Version != "" {
		txt[TXTKeyVersion] = a.Version
	}
	return txt
}

// DecodeAnnouncementTXT parses TXT records into an announcement. The port is
// taken from the SRV record and must be filled in by the caller.
func DecodeAnnouncementTXT(txt TXTRecordMap) (*Announcement, error) {
	a := &Announcement{}

	var ok bool
	a.Name, ok = txt[TXTKeyName]
	if !ok || a.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}
	if _, _, err := SplitName(a.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTXTRecord, err)
	}

	idStr, ok := txt[TXTKeyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}
	if !ValidateID(idStr) {
		return nil, fmt.Errorf("%w: invalid device id format", ErrInvalidTXTRecord)
	}
	id, err := strconv.ParseUint(idStr, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTXTRecord, err)
	}
	a.ID = id

	a.Token, ok = txt[TXTKeyToken]
	if !ok || a.Token == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyToken)
	}

	a.Version = txt[TXTKeyVersion]
	return a, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings, sorted
// by key so advertisements are stable.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(txt))
	for _, k := range keys {
		result = append(result, fmt.Sprintf("%s=%s", k, txt[k]))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

// ValidateID checks if an ID string is a valid 64-bit id (16 hex chars).
func ValidateID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
