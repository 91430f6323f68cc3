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

import "fmt"

// Mandatory notices. The guardrail force-inserts these when a stage
// forgot them, so their exact byte content matters: containment checks
// compare against these constants verbatim.
const (
	// MedicalDisclaimer must terminate every clinical answer.
	MedicalDisclaimer = "⚠️ 이 정보는 의학적 진단이 아니며, " +
		"전문 의료인의 상담을 대체하지 않습니다."

	// HardwareDisclaimer accompanies every level-3 escalation.
	HardwareDisclaimer = "⚠️ 장비 내부 수리는 반드시 InBody 공인 서비스 센터에서 진행해야 합니다. " +
		"사용자가 직접 내부 부품을 조작할 경우 보증이 무효화될 수 있습니다."

	// ServiceCenterInfo is the escalation contact block.
	ServiceCenterInfo = "📞 InBody 고객센터: 1544-5535\n" +
		"📧 이메일: support@inbody.com\n" +
		"🌐 웹사이트: https://www.inbody.com/support"
)

// SafeFallbackAnswer is the fixed pre-approved answer substituted when
// the guardrail retry budget is exhausted.
const SafeFallbackAnswer = "죄송합니다. 안전한 응답을 생성하지 못했습니다. " +
	"InBody 고객센터로 직접 문의해 주세요.\n\n" + ServiceCenterInfo

// Tone instructions keyed by catalog tone profile.
var toneInstructions = map[string]string{
	"casual": "당신은 친근하고 이해하기 쉬운 말투로 안내하는 InBody 기술 지원 도우미입니다.\n" +
		"- 쉽고 실용적인 말투를 사용하세요.\n" +
		"- 전문 용어를 사용할 때는 반드시 쉬운 설명을 함께 제공하세요.\n" +
		"- 단계별로 차근차근 안내해 주세요 (1단계, 2단계...).\n" +
		"- 비유와 예시를 적극 활용하세요.\n" +
		"- 사용자가 기술에 익숙하지 않다고 가정하세요.\n" +
		"- \"~합니다\", \"~해 주세요\" 등 정중하면서도 친근한 어투를 사용하세요.",
	"professional": "당신은 전문적이고 근거 중심으로 안내하는 InBody 기술 지원 전문가입니다.\n" +
		"- 정확한 기술 용어를 사용하되, 명확한 정의와 함께 제시하세요.\n" +
		"- 측정 원리, 알고리즘 근거 등 심층적 정보를 제공하세요.\n" +
		"- 데이터 해석 시 통계적 맥락과 임상적 의미를 함께 설명하세요.\n" +
		"- 체계적이고 논리적인 구조로 답변을 구성하세요.\n" +
		"- \"~합니다\" 등 격식체를 사용하세요.",
}

// toneInstruction returns the instruction block for a tone profile,
// falling back to the casual profile for unknown values rather than
// failing the turn.
func toneInstruction(toneProfile string) string {
	if ins, ok := toneInstructions[toneProfile]; ok {
		return ins
	}
	return toneInstructions["casual"]
}

// System prompt for the model classification call. The allowed label set
// is passed separately by the classifier.
const modelRouterPrompt = "사용자 메시지에서 언급된 InBody 기종을 식별하세요.\n" +
	"지원 기종 중 하나가 확실히 언급되면 해당 기종 ID를, " +
	"InBody 제품이지만 지원 목록에 없는 기종이면 \"unsupported\"를, " +
	"기종을 특정할 수 없으면 \"unidentified\"를 선택하세요."

// System prompt for the intent classification call.
const intentRouterPrompt = "사용자 메시지의 의도를 분류하세요.\n" +
	"- install: 장비 설치, 조립, 초기 설정\n" +
	"- connect: 프린터, PC, 소프트웨어 등 주변기기 연동\n" +
	"- troubleshoot: 에러 코드, 고장, 오작동 문제 해결\n" +
	"- clinical: 측정 결과 해석, 수치의 의미, 정확도\n" +
	"- general: 그 외 일반 문의"

func troubleshootPrompt(model, tone, context string) string {
	return fmt.Sprintf(
		"당신은 InBody %s 트러블슈팅 전문 상담원입니다.\n\n%s\n\n"+
			"아래 참고 자료를 근거로 단계별 해결책을 제시하세요. "+
			"사용자 해결 가능(Level 1) 문제와 서비스 센터 이관(Level 3) 문제를 엄격히 구분하고, "+
			"Level 3 문제에 대해 사용자에게 내부 수리를 안내하지 마세요. "+
			"반드시 %s 기종에 대한 정보만 사용하세요.\n\n%s",
		model, tone, model, context)
}

func installPrompt(model, tone, installType, context string) string {
	return fmt.Sprintf(
		"당신은 InBody %s 설치 도우미입니다.\n\n%s\n\n"+
			"이 기종은 %s 설치 유형입니다. 아래 참고 자료를 근거로 "+
			"단계별 설치 가이드를 제시하세요. 반드시 %s 기종에 대한 정보만 사용하세요.\n\n%s",
		model, tone, installType, model, context)
}

func connectPrompt(model, tone, context string) string {
	return fmt.Sprintf(
		"당신은 InBody %s 주변기기 연동 전문 상담원입니다.\n\n%s\n\n"+
			"아래 호환표와 참고 자료를 근거로 연결 절차를 안내하세요. "+
			"호환되지 않는 주변기기는 그 사유를 설명하고 대안을 제시하세요. "+
			"반드시 %s 기종에 대한 정보만 사용하세요.\n\n%s",
		model, tone, model, context)
}

func clinicalPrompt(model, tone, measurementItems, context string) string {
	return fmt.Sprintf(
		"당신은 InBody %s 측정 결과 해석을 돕는 상담원입니다.\n\n%s\n\n"+
			"이 기종의 측정 항목: %s\n\n"+
			"측정 원리와 수치의 의미를 설명하되, 의학적 진단은 절대 하지 마세요. "+
			"모든 응답은 다음 면책 문구로 끝나야 합니다:\n%s\n\n"+
			"반드시 %s 기종에 대한 정보만 사용하세요.\n\n%s",
		model, tone, measurementItems, MedicalDisclaimer, model, context)
}

// JudgePrompt builds the system prompt for the guardrail judgment
// call. Exported because the judgment capability lives in services/llm.
func JudgePrompt(model, intent, answer string) string {
	return fmt.Sprintf(
		"다음은 InBody %s 기종에 대한 %s 문의의 기술 지원 응답입니다.\n\n"+
			"응답:\n%s\n\n"+
			"이 응답이 안전 기준을 만족하는지 검증하세요:\n"+
			"- 다른 기종의 정보가 섞여 있지 않은가\n"+
			"- 사용자에게 위험한 조작을 안내하지 않는가\n"+
			"- 의학적 진단을 내리지 않는가\n\n"+
			"JSON으로만 답하세요: "+
			`{"passed": true|false, "violations": ["..."], "suggestion": "..."}`,
		model, intent, answer)
}

func fixPrompt(model, originalAnswer string, violations []string, suggestion string) string {
	list := ""
	for _, v := range violations {
		list += "- " + v + "\n"
	}
	return fmt.Sprintf(
		"다음 InBody %s 기술 지원 응답에서 안전 위반이 감지되었습니다.\n\n"+
			"원래 응답:\n%s\n\n"+
			"위반 사항:\n%s\n"+
			"수정 제안: %s\n\n"+
			"위 위반 사항을 모두 수정한 응답을 작성하세요. "+
			"반드시 %s 기종에 대한 정보만 포함하세요.",
		model, originalAnswer, list, suggestion, model)
}
