// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package keystore

import (
	"encoding/json"

	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/wire"
)

func marshalKeyShare(ks wire.KeyShare) ([]byte, error) {
	data, err := json.Marshal(ks)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.Config, "failed to marshal keyshare", err)
	}
	return data, nil
}

func unmarshalKeyShare(data []byte) (wire.KeyShare, error) {
	var ks wire.KeyShare
	if err := json.Unmarshal(data, &ks); err != nil {
		return wire.KeyShare{}, mpcerrors.Wrap(mpcerrors.Config, "failed to unmarshal keyshare", err)
	}
	return ks, nil
}
