// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"testing"

	"github.com/q191201771/dtvrec/pkg/innertest"
)

func TestLogic(t *testing.T) {
	innertest.InnerTestEntry(t)
}
