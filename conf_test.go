/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import "testing"

func TestValidateConfRejectsZeroFailureThreshold(t *testing.T) {
	saved := Conf.HR10FailureThreshold
	defer func() { Conf.HR10FailureThreshold = saved }()

	Conf.HR10FailureThreshold = 0
	if err := validateConf(); err == nil {
		t.Error("validateConf() error = nil, want non-nil for a zero failure threshold")
	}

	Conf.HR10FailureThreshold = 3
	if err := validateConf(); err != nil {
		t.Errorf("validateConf() error = %v, want nil", err)
	}
}
