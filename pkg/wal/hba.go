package wal

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ModifyHBAConf appends a trust-auth replication entry for replUser
// and subnetRange to pgdata's pg_hba.conf, unless that exact line is
// already present.
//
// Grounded on original_source/lib/service_hander.py's
// ServiceHandle.modify_hba_conf.
func ModifyHBAConf(pgdata, replUser, subnetRange string) error {
	confFile := filepath.Join(pgdata, "pg_hba.conf")
	line := fmt.Sprintf("host  replication   %s   %s   trust", replUser, subnetRange)

	data, err := os.ReadFile(confFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", confFile, err)
	}
	if strings.Contains(string(data), line) {
		return nil
	}

	f, err := os.OpenFile(confFile, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", confFile, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append %s: %w", confFile, err)
	}
	return nil
}

var recoveryMinApplyDelayPattern = regexp.MustCompile(`\nrecovery_min_apply_delay = '.*?'`)

// ModifyStandbyDelay sets recovery_min_apply_delay in the standby's
// recovery.conf, replacing an existing setting in place or appending a
// new one, then restarts postgres as dbUser to pick up the change.
//
// Grounded on original_source/lib/service_hander.py's
// ServiceHandle.modify_standby_delay.
func ModifyStandbyDelay(pgdata, dbUser, delay string) error {
	file := filepath.Join(pgdata, "recovery.conf")
	conf := fmt.Sprintf("\nrecovery_min_apply_delay = '%s'", delay)

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	content := string(data)

	var newContent string
	if match := recoveryMinApplyDelayPattern.FindString(content); match != "" {
		newContent = strings.Replace(content, match, conf, 1)
	} else {
		newContent = content + conf
	}

	if err := os.WriteFile(file, []byte(newContent), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}

	restart := exec.Command("su", "-", dbUser, "-c", fmt.Sprintf("pg_ctl restart -D %s", pgdata))
	if out, err := restart.CombinedOutput(); err != nil {
		return fmt.Errorf("restart postgres: %w: %s", err, out)
	}
	return nil
}
