package importer

import (
	"fmt"
	"sync"
)

// Upper bound on in-flight encryption goroutines per run. Encryption is pure
// CPU work per row, so a small fan-out is enough.
const encryptWorkers = 8

// encryptRecords encrypts the named columns of every record in place, one
// bounded goroutine per row. Rows are independent maps so no locking is
// needed; order is irrelevant because nothing is written until all rows are
// done. The returned slice is indexed like records, nil meaning success.
func (im *Importer) encryptRecords(table string, records []map[string]any, columns []string, key []byte) []error {
	errs := make([]error, len(records))
	sem := make(chan struct{}, encryptWorkers)
	var wg sync.WaitGroup

	for i := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			record := records[i]
			for _, col := range columns {
				plain, _ := record[col].(string)
				if plain == "" {
					continue
				}
				ciphertext, err := im.enc.Encrypt(plain, table+"."+col, key)
				if err != nil {
					errs[i] = fmt.Errorf("encrypt %s: %w", col, err)
					return
				}
				record[col] = ciphertext
			}
		}(i)
	}

	wg.Wait()
	return errs
}

// dropFailedEncryption removes rows whose encryption failed so plaintext
// personal data never reaches the write path by accident.
func dropFailedEncryption(records []map[string]any, errs []error, rep *reporter) []map[string]any {
	kept := records[:0]
	for i, record := range records {
		if errs[i] != nil {
			rep.rowError(i+1, errs[i].Error())
			continue
		}
		kept = append(kept, record)
	}
	return kept
}
