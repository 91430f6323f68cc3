// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// Built-in structured data, loaded on first startup so a fresh install
// answers error-code and compatibility questions out of the box.
// SeedIfEmpty skips tables that already contain rows, so operators can
// replace this data without it reappearing.

var seedErrorCodes = []datatypes.ErrorCode{
	{
		Code: "E001", ModelId: "270S",
		Title:        "전극 접촉 불량",
		Description:  "측정 중 전극 접촉 불량이 감지되어 측정이 중단됩니다.",
		Cause:        "손바닥 또는 발바닥이 전극에 완전히 닿지 않았거나 전극 표면에 이물질이 있습니다.",
		SupportLevel: datatypes.SupportLevel1,
		ResolutionSteps: []string{
			"전극 표면을 알코올 솜으로 닦아 주세요.",
			"맨발 상태로 발 전극의 앞뒤 금속판을 모두 밟고 서 주세요.",
			"손 전극의 엄지와 손바닥 전극을 모두 감싸 쥐고 다시 측정해 주세요.",
		},
	},
	{
		Code: "E002", ModelId: "270S",
		Title:        "체중 센서 영점 오류",
		Description:  "전원 투입 시 체중 센서 영점 조정에 실패했습니다.",
		Cause:        "발판 위에 물체가 있거나 바닥이 평평하지 않습니다.",
		SupportLevel: datatypes.SupportLevel1,
		ResolutionSteps: []string{
			"발판 위의 모든 물체를 치워 주세요.",
			"장비를 단단하고 평평한 바닥으로 옮겨 주세요.",
			"전원을 껐다가 10초 후 다시 켜 주세요.",
		},
	},
	{
		Code: "E010", ModelId: "270S",
		Title:        "메인보드 통신 오류",
		Description:  "본체와 측정부 사이의 내부 통신이 끊어졌습니다.",
		Cause:        "내부 케이블 단선 또는 메인보드 고장이 의심됩니다.",
		SupportLevel: datatypes.SupportLevel3,
		ResolutionSteps: []string{
			"전원을 껐다가 다시 켜 보세요.",
			"증상이 반복되면 서비스 센터에 점검을 요청해 주세요.",
		},
		EscalationNote: "내부 부품 점검이 필요한 고장입니다. 사용자 분해는 보증이 무효화됩니다.",
	},
	{
		Code: "E001", ModelId: "580",
		Title:        "전극 접촉 불량",
		Description:  "측정 중 전극 접촉 불량이 감지되어 측정이 중단됩니다.",
		Cause:        "손바닥 또는 발바닥이 전극에 완전히 닿지 않았거나 전극 표면에 이물질이 있습니다.",
		SupportLevel: datatypes.SupportLevel1,
		ResolutionSteps: []string{
			"전극 표면을 알코올 솜으로 닦아 주세요.",
			"맨발 상태로 전극 위에 바르게 서서 다시 측정해 주세요.",
		},
	},
	{
		Code: "E005", ModelId: "580",
		Title:        "프린터 통신 오류",
		Description:  "결과지 인쇄 요청이 프린터에 전달되지 않습니다.",
		Cause:        "프린터 케이블 연결 불량 또는 프린터 전원 꺼짐.",
		SupportLevel: datatypes.SupportLevel1,
		ResolutionSteps: []string{
			"프린터 전원이 켜져 있는지 확인해 주세요.",
			"USB 케이블을 뽑았다가 다시 연결해 주세요.",
			"장비 설정 메뉴에서 프린터 모델이 올바르게 선택되어 있는지 확인해 주세요.",
		},
	},
	{
		Code: "E020", ModelId: "770S",
		Title:        "주파수 발생부 이상",
		Description:  "다주파수 측정 중 특정 주파수 대역 신호가 생성되지 않습니다.",
		Cause:        "주파수 발생 회로의 고장이 의심됩니다.",
		SupportLevel: datatypes.SupportLevel3,
		ResolutionSteps: []string{
			"전원을 껐다가 1분 후 다시 켜 보세요.",
			"증상이 반복되면 측정을 중단하고 서비스 센터에 점검을 요청해 주세요.",
		},
		EscalationNote: "측정 정확도에 직접 영향을 주는 고장으로 즉시 점검이 필요합니다.",
	},
	{
		Code: "E003", ModelId: "770S",
		Title:        "자세 불안정 감지",
		Description:  "측정 중 피측정자의 움직임이 감지되어 측정이 중단됩니다.",
		Cause:        "측정 중 팔을 내리거나 몸을 움직였습니다.",
		SupportLevel: datatypes.SupportLevel1,
		ResolutionSteps: []string{
			"팔을 몸에서 15도 정도 벌린 자세를 측정이 끝날 때까지 유지해 주세요.",
			"측정 중에는 말을 하거나 움직이지 않도록 안내해 주세요.",
		},
	},
	{
		Code: "E030", ModelId: "970S",
		Title:        "체수분 측정부 오류",
		Description:  "부위별 체수분 측정 중 임피던스 값이 유효 범위를 벗어났습니다.",
		Cause:        "측정부 내부 회로 이상 또는 극단적인 측정 환경.",
		SupportLevel: datatypes.SupportLevel3,
		ResolutionSteps: []string{
			"실온(20~25도) 환경에서 다시 측정해 보세요.",
			"증상이 반복되면 서비스 센터에 점검을 요청해 주세요.",
		},
		EscalationNote: "연구용 정밀 측정부 고장은 현장 수리가 불가능합니다.",
	},
	{
		Code: "E001", ModelId: "970S",
		Title:        "전극 접촉 불량",
		Description:  "측정 중 전극 접촉 불량이 감지되어 측정이 중단됩니다.",
		Cause:        "손바닥 또는 발바닥이 전극에 완전히 닿지 않았거나 전극 표면에 이물질이 있습니다.",
		SupportLevel: datatypes.SupportLevel1,
		ResolutionSteps: []string{
			"전극 표면을 알코올 솜으로 닦아 주세요.",
			"피측정자의 손발이 건조한 경우 전해질 티슈로 닦은 뒤 측정해 주세요.",
		},
	},
}

var seedPeripherals = []datatypes.PeripheralCompat{
	{
		ModelId: "270S", PeripheralType: "printer", PeripheralName: "HP LaserJet 시리즈",
		IsCompatible: true, ConnectionMethod: "USB",
		SetupSteps: []string{
			"프린터를 USB 케이블로 본체 후면 포트에 연결합니다.",
			"설정 > 프린터에서 HP PCL 드라이버를 선택합니다.",
			"테스트 페이지를 인쇄하여 연결을 확인합니다.",
		},
	},
	{
		ModelId: "270S", PeripheralType: "pc", PeripheralName: "LookInBody",
		IsCompatible: true, ConnectionMethod: "USB",
		SetupSteps: []string{
			"PC에 LookInBody 소프트웨어를 설치합니다.",
			"본체와 PC를 USB 케이블로 연결합니다.",
			"LookInBody에서 장비 검색을 실행해 270S를 등록합니다.",
		},
	},
	{
		ModelId: "270S", PeripheralType: "barcode_reader", PeripheralName: "USB 바코드 리더기",
		IsCompatible: false,
		SetupSteps:   []string{},
	},
	{
		ModelId: "580", PeripheralType: "printer", PeripheralName: "HP LaserJet 시리즈",
		IsCompatible: true, ConnectionMethod: "USB",
		SetupSteps: []string{
			"프린터를 USB 케이블로 본체에 연결합니다.",
			"설정 > 프린터에서 결과지 양식을 선택합니다.",
		},
	},
	{
		ModelId: "580", PeripheralType: "pc", PeripheralName: "LookInBody",
		IsCompatible: true, ConnectionMethod: "USB, LAN",
		SetupSteps: []string{
			"PC에 LookInBody 소프트웨어를 설치합니다.",
			"USB 또는 LAN 케이블로 본체와 PC를 연결합니다.",
			"LookInBody에서 장비 검색을 실행해 580을 등록합니다.",
		},
	},
	{
		ModelId: "770S", PeripheralType: "pc", PeripheralName: "LookInBody",
		IsCompatible: true, ConnectionMethod: "LAN, Wi-Fi",
		SetupSteps: []string{
			"본체 설정에서 네트워크(LAN 또는 Wi-Fi)를 구성합니다.",
			"LookInBody에서 같은 네트워크의 장비를 검색해 770S를 등록합니다.",
		},
	},
	{
		ModelId: "770S", PeripheralType: "barcode_reader", PeripheralName: "USB 바코드 리더기",
		IsCompatible: true, ConnectionMethod: "USB",
		SetupSteps: []string{
			"바코드 리더기를 본체 USB 포트에 연결합니다.",
			"설정 > 입력 장치에서 바코드 입력을 활성화합니다.",
		},
	},
	{
		ModelId: "970S", PeripheralType: "pc", PeripheralName: "LookInBody",
		IsCompatible: true, ConnectionMethod: "LAN, Wi-Fi",
		SetupSteps: []string{
			"본체 설정에서 네트워크를 구성합니다.",
			"LookInBody에서 장비 검색을 실행해 970S를 등록합니다.",
		},
	},
	{
		ModelId: "970S", PeripheralType: "pc", PeripheralName: "EMR 연동 (HL7)",
		IsCompatible: true, ConnectionMethod: "LAN",
		SetupSteps: []string{
			"병원 전산 담당자와 HL7 인터페이스 사양을 협의합니다.",
			"본체 설정 > 연동에서 EMR 서버 주소와 포트를 입력합니다.",
			"테스트 측정 결과가 EMR에 수신되는지 확인합니다.",
		},
	},
	{
		ModelId: "970S", PeripheralType: "usb", PeripheralName: "USB 메모리",
		IsCompatible: true, ConnectionMethod: "USB",
		SetupSteps: []string{
			"FAT32로 포맷된 USB 메모리를 본체에 연결합니다.",
			"데이터 관리 메뉴에서 내보내기를 실행합니다.",
		},
	},
}

// SeedIfEmpty loads the built-in structured data into empty tables.
func (r *Records) SeedIfEmpty(ctx context.Context) error {
	n, err := r.seedErrorCodesIfEmpty(ctx)
	if err != nil {
		return err
	}
	m, err := r.seedPeripheralsIfEmpty(ctx)
	if err != nil {
		return err
	}
	if n > 0 || m > 0 {
		slog.Info("Seeded structured data", "errorCodes", n, "peripherals", m)
	}
	return nil
}

func (r *Records) seedErrorCodesIfEmpty(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM error_codes").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting error codes: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	for _, rec := range seedErrorCodes {
		steps, err := json.Marshal(rec.ResolutionSteps)
		if err != nil {
			return 0, fmt.Errorf("encoding resolution steps for %s: %w", rec.Code, err)
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO error_codes
				(code, model_id, title, description, cause, support_level, resolution_steps, escalation_note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Code, rec.ModelId, rec.Title, rec.Description, rec.Cause,
			rec.SupportLevel, string(steps), rec.EscalationNote)
		if err != nil {
			return 0, fmt.Errorf("seeding error code %s/%s: %w", rec.ModelId, rec.Code, err)
		}
	}
	return len(seedErrorCodes), nil
}

func (r *Records) seedPeripheralsIfEmpty(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM peripheral_compatibility").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting peripherals: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	for _, rec := range seedPeripherals {
		steps, err := json.Marshal(rec.SetupSteps)
		if err != nil {
			return 0, fmt.Errorf("encoding setup steps for %s: %w", rec.PeripheralName, err)
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO peripheral_compatibility
				(model_id, peripheral_type, peripheral_name, is_compatible, connection_method, setup_steps)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ModelId, rec.PeripheralType, rec.PeripheralName, rec.IsCompatible,
			rec.ConnectionMethod, string(steps))
		if err != nil {
			return 0, fmt.Errorf("seeding peripheral %s/%s: %w", rec.ModelId, rec.PeripheralName, err)
		}
	}
	return len(seedPeripherals), nil
}
