// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"fmt"
)

var intentLabels = map[string]string{
	IntentInstall:      "설치",
	IntentConnect:      "연동",
	IntentTroubleshoot: "트러블슈팅",
	IntentClinical:     "임상 해석",
	IntentGeneral:      "일반",
}

// GeneralAgent is the fallback for messages outside the specialized
// intents. It acknowledges the inquiry with catalog data only; no
// generation call, so it cannot hallucinate.
func (s *StageSet) GeneralAgent(ctx context.Context, st *State) (Patch, error) {
	profile, err := s.profileFor(st)
	if err != nil {
		return Patch{}, err
	}

	intentLabel, ok := intentLabels[st.Intent]
	if !ok {
		intentLabel = intentLabels[IntentGeneral]
	}
	toneDesc := "전문가용"
	if profile.ToneProfile == "casual" {
		toneDesc = "친근한 보급형"
	}

	answer := fmt.Sprintf(
		"안녕하세요! InBody %s %s 관련 문의를 접수했습니다.\n\n"+
			"현재 %s 톤의 %s 상담을 제공하고 있습니다. "+
			"설치, 주변기기 연동, 에러 해결, 측정 결과 해석에 대해 "+
			"구체적으로 질문해 주시면 더 정확한 안내를 드릴 수 있습니다.\n\n"+
			"기종: %s\n분류: %s\n의도: %s",
		st.Model, intentLabel, toneDesc, intentLabel,
		profile.Name, tierLabel(profile.Tier), intentLabel)

	if st.NeedsDisclaimer {
		answer = ensureSuffix(answer, MedicalDisclaimer)
	}

	return Patch{Answer: strPtr(answer)}, nil
}
