package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/schedule"
)

// ImageNote is the text part placed after the i-th image (zero based).
func ImageNote(i int, modified time.Time, loc *time.Location) string {
	if loc != nil {
		modified = modified.In(loc)
	}
	return fmt.Sprintf("[이미지 %d 메타데이터] 파일 수정 시간: %s. (스크린샷 내에 시계가 보이지 않을 때만 이 시간을 기준 시간으로 사용하세요)",
		i+1, modified.Format(schedule.ClockLayout))
}

// BuildPrompt renders the instruction prompt for the given rules.
func BuildPrompt(r models.BossRules) string {
	var b strings.Builder
	b.WriteString(`당신은 오딘: 발할라 라이징 게임의 보스 시간표를 초 단위까지 계산하는 정밀 계산기입니다.

[1단계: 기준 시간(Current Time) 확정 - 초 단위 필수]
각 이미지마다 다음 우선순위로 '기준 시간'을 찾으세요.
1순위: **이미지 내 시계 숫자 (HH:MM:SS)**. 예를 들어 "14:14:36" 같은 형태를 찾으세요.
2순위: 이미지 내 시계가 없다면, 제공된 [메타데이터 파일 수정 시간]을 사용.

[2단계: 남은 시간(Remaining Time) 판독]
보스 목록 옆에 있는 시간 텍스트를 정확히 읽으세요.
- "05:00:00" -> 5시간 0분 0초
- "00:39:00" -> 39분 0초
- "00:00:59" -> 59초

[3단계: 등장 시간(Spawn Time) 계산 - 정밀]
수식: **기준 시간(HH:MM:SS) + 남은 시간 = 등장 시간(HH:MM:SS)**
- 초 단위까지 정확히 더하세요.
- 예: 기준 14:14:36 + 남은시간 00:39:00 = 14:53:36
- 자정을 넘어가면 24를 뺀 시간을 적으세요 (예: 25:00:10 -> 01:00:10).

[4단계: 필터링 및 이름 변경]
- **제외(필수)**:
`)
	n := 1
	for _, name := range r.Exclude {
		fmt.Fprintf(&b, "  %d. %q\n", n, name)
		n++
	}
	for _, m := range r.DayMarkers {
		fmt.Fprintf(&b, "  %d. \"1%s\" 이상 남은 보스\n", n, m)
		n++
	}
	if len(r.AppearedMarkers) > 0 {
		quoted := make([]string, len(r.AppearedMarkers))
		for i, m := range r.AppearedMarkers {
			quoted[i] = fmt.Sprintf("%q", m)
		}
		fmt.Fprintf(&b, "  %d. %s 등 이미 등장한 상태인 보스\n", n, strings.Join(quoted, ", "))
	}

	if len(r.Rename) > 0 {
		b.WriteString("\n- **이름 변경(필수)**:\n")
		for _, rn := range r.Rename {
			fmt.Fprintf(&b, "  - %q -> %q\n", rn.From, rn.To)
		}
	}

	b.WriteString(`
[5단계: 정렬]
- 추출된 모든 보스를 **등장 시간(spawnTime)이 빠른 순서대로(오름차순)** 정렬하세요.

JSON 형식으로 반환하세요.
'referenceTime'은 사용된 기준 시간을 "HH:MM:SS" 형식으로 적으세요.
'spawnTime'도 반드시 "HH:MM:SS" 형식이어야 합니다.
'remainingTimeText' 필드에는 이미지에서 읽은 원본 시간 텍스트를 적어주세요.
`)
	return b.String()
}
