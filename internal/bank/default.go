package bank

// Default returns the built-in catalog. It panics only if the literal data
// below is edited into an invalid state, which the package tests catch.
func Default() *Bank {
	b, err := New(
		[]ExamType{InfoProcessingEngineer, ComputerSpecialistL1, SQLD},
		map[ExamType][]Question{
			InfoProcessingEngineer: {
				must(NewQuestion(1, "데이터베이스", "다음 중 데이터베이스 정규화의 목적이 아닌 것은?",
					[]string{"데이터 중복을 제거한다", "데이터 무결성을 보장한다", "저장 공간을 최소화한다", "데이터 접근 속도를 향상시킨다"},
					3, "정규화는 데이터 중복 제거와 무결성 보장이 목적이며, 오히려 조인 연산이 증가하여 접근 속도가 느려질 수 있습니다.")),
				must(NewQuestion(2, "알고리즘", "퀵 정렬(Quick Sort)의 평균 시간 복잡도는?",
					[]string{"O(n)", "O(n log n)", "O(n²)", "O(log n)"},
					1, "퀵 정렬의 평균 시간 복잡도는 O(n log n)이며, 최악의 경우 O(n²)입니다.")),
				must(NewQuestion(3, "네트워크", "TCP/IP 프로토콜 스택에서 전송 계층(Transport Layer)에 해당하는 프로토콜은?",
					[]string{"IP", "TCP, UDP", "HTTP", "Ethernet"},
					1, "TCP와 UDP는 전송 계층 프로토콜이며, IP는 네트워크 계층, HTTP는 응용 계층, Ethernet은 데이터 링크 계층입니다.")),
				must(NewQuestion(4, "운영체제", "다음 중 프로세스 스케줄링 알고리즘이 아닌 것은?",
					[]string{"FCFS (First Come First Served)", "SJF (Shortest Job First)", "Round Robin", "FIFO (First In First Out)"},
					3, "FIFO는 큐 자료구조의 특성이며, 프로세스 스케줄링 알고리즘은 FCFS, SJF, Round Robin 등이 있습니다.")),
				must(NewQuestion(5, "소프트웨어 공학", "다음 중 객체지향 프로그래밍의 특징이 아닌 것은?",
					[]string{"캡슐화", "상속", "다형성", "순차성"},
					3, "객체지향 프로그래밍의 주요 특징은 캡슐화, 상속, 다형성, 추상화이며, 순차성은 구조적 프로그래밍의 특징입니다.")),
			},
			ComputerSpecialistL1: {
				must(NewQuestion(1, "엑셀", "엑셀에서 VLOOKUP 함수의 네 번째 인수 [range_lookup]에서 TRUE를 사용하면?",
					[]string{"정확히 일치하는 값만 찾는다", "근사치 일치를 사용한다", "오름차순 정렬이 필요없다", "대소문자를 구분한다"},
					1, "TRUE는 근사치 일치를 의미하며, 참조 테이블이 오름차순으로 정렬되어 있어야 합니다.")),
				must(NewQuestion(2, "액세스", "액세스에서 쿼리의 종류가 아닌 것은?",
					[]string{"선택 쿼리", "작업 쿼리", "크로스탭 쿼리", "삽입 쿼리"},
					3, "액세스 쿼리 종류는 선택, 작업(추가/업데이트/삭제), 크로스탭, 매개변수 쿼리 등이 있으며, 삽입 쿼리는 SQL 용어입니다.")),
				must(NewQuestion(3, "엑셀", "엑셀에서 배열 수식의 입력 방법은?",
					[]string{"Enter 키", "Ctrl + Enter", "Ctrl + Shift + Enter", "Alt + Enter"},
					2, "배열 수식은 Ctrl + Shift + Enter로 입력하며, 수식 양쪽에 중괄호 {}가 자동으로 추가됩니다.")),
			},
			SQLD: {
				must(NewQuestion(1, "SQL 기본", "다음 중 SQL에서 NULL 값에 대한 설명으로 옳은 것은?",
					[]string{"NULL은 0과 같다", "NULL은 공백 문자열과 같다", "NULL은 알 수 없는 값이다", "NULL은 빈 값이다"},
					2, "NULL은 알 수 없는 값(Unknown)을 의미하며, 0이나 공백 문자열과는 다릅니다.")),
				must(NewQuestion(2, "SQL 활용", "다음 중 서브쿼리의 종류가 아닌 것은?",
					[]string{"단일 행 서브쿼리", "다중 행 서브쿼리", "다중 컬럼 서브쿼리", "다중 테이블 서브쿼리"},
					3, "서브쿼리는 단일 행, 다중 행, 다중 컬럼 서브쿼리로 분류되며, 다중 테이블 서브쿼리는 존재하지 않습니다.")),
				must(NewQuestion(3, "SQL 최적화", "인덱스를 사용하면 좋지 않은 경우는?",
					[]string{"WHERE 절에서 자주 사용되는 컬럼", "JOIN 조건에 사용되는 컬럼", "자주 UPDATE되는 컬럼", "ORDER BY에 사용되는 컬럼"},
					2, "자주 UPDATE되는 컬럼에 인덱스를 생성하면 인덱스도 함께 갱신되어 오히려 성능이 저하될 수 있습니다.")),
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return b
}

func must(q Question, err error) Question {
	if err != nil {
		panic(err)
	}
	return q
}
